package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	kernelServices "github.com/sisoputnfrba/tp-vm-Los-magiOS/kernel/services"
	"github.com/sisoputnfrba/tp-vm-Los-magiOS/memoria/helpers"
	"github.com/sisoputnfrba/tp-vm-Los-magiOS/memoria/models"
	"github.com/sisoputnfrba/tp-vm-Los-magiOS/utils/web/server"
)

// DumpMemoryHandler vuelca la memoria del proceso en <pid>-<timestamp>.dmp dentro de dump_path.
func DumpMemoryHandler(kernel *kernelServices.Kernel, dumpPath string) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.PIDRequest
		if !decodeRequest(w, r, &req) {
			return
		}

		process, err := kernel.Process(req.PID)
		if err != nil {
			sendError(w, err)
			return
		}

		dumpFilePath := filepath.Join(dumpPath, helpers.GetDumpName(req.PID))
		file, err := os.Create(dumpFilePath)
		if err != nil {
			slog.Error(fmt.Sprintf("error al crear archivo de dump: %v", err))
			sendError(w, err)
			return
		}
		defer file.Close()

		if _, err := kernel.Dump(req.PID, file); err != nil {
			sendError(w, err)
			return
		}

		for _, entry := range process.AS.PageTable() {
			slog.Debug(fmt.Sprintf("## PID: %d - %s[%d] 0x%08x -> 0x%08x", req.PID, entry.Region, entry.Index, entry.VAddr, entry.Raw))
		}
		server.SendJsonResponse(w, models.DumpResponse{File: dumpFilePath})
	}
}
