package services

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sys/unix"
)

var ErrOutOfRange = errors.New("acceso fuera del disco")

// Disk es un dispositivo de bloques crudo sobre un archivo. Las lecturas y
// escrituras van directo al descriptor con pread/pwrite, sin buffers de Go.
type Disk struct {
	file *os.File
	fd   int
	size int64
}

// OpenDisk abre (o crea) el archivo en path y lo deja exactamente de size bytes.
func OpenDisk(path string, size int64) (*Disk, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("no se pudo abrir el disco %s: %w", path, err)
	}
	fd := int(file.Fd())
	if err := unix.Ftruncate(fd, size); err != nil {
		file.Close()
		return nil, fmt.Errorf("no se pudo dimensionar el disco %s a %d bytes: %w", path, size, err)
	}
	slog.Debug(fmt.Sprintf("Disco %s abierto - Tamaño: %d bytes", path, size))
	return &Disk{file: file, fd: fd, size: size}, nil
}

func (d *Disk) Size() int64 {
	return d.size
}

func (d *Disk) check(n int, off int64) error {
	if off < 0 || off+int64(n) > d.size {
		return fmt.Errorf("%w: %d bytes en el offset %d (tamaño %d)", ErrOutOfRange, n, off, d.size)
	}
	return nil
}

func (d *Disk) ReadAt(p []byte, off int64) (int, error) {
	if err := d.check(len(p), off); err != nil {
		return 0, err
	}
	done := 0
	for done < len(p) {
		n, err := unix.Pread(d.fd, p[done:], off+int64(done))
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return done, err
		}
		if n == 0 {
			// Un archivo recién truncado lee ceros, nunca EOF antes de size.
			return done, fmt.Errorf("%w: lectura corta en el offset %d", ErrOutOfRange, off+int64(done))
		}
		done += n
	}
	return done, nil
}

func (d *Disk) WriteAt(p []byte, off int64) (int, error) {
	if err := d.check(len(p), off); err != nil {
		return 0, err
	}
	done := 0
	for done < len(p) {
		n, err := unix.Pwrite(d.fd, p[done:], off+int64(done))
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return done, err
		}
		done += n
	}
	return done, nil
}

func (d *Disk) Sync() error {
	return unix.Fsync(d.fd)
}

func (d *Disk) Close() error {
	return d.file.Close()
}
