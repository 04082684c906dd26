// Package restyutil dumps the raw traffic of a resty client so a scraper can be
// debugged against what the upstream actually sent.
package restyutil

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
)

type Output interface {
	Write(id string, contents string)
}

type FilesystemOutput struct {
	directory string
}

// NewFilesystemOutput clears dir and writes one file per message into it.
func NewFilesystemOutput(dir string) (FilesystemOutput, error) {
	err := os.RemoveAll(dir)
	if err != nil {
		return FilesystemOutput{}, err
	}
	err = os.MkdirAll(dir, 0777)
	if err != nil {
		return FilesystemOutput{}, err
	}
	return FilesystemOutput{directory: dir}, nil
}

func (o FilesystemOutput) Write(id string, contents string) {
	err := os.WriteFile(filepath.Join(o.directory, id), []byte(contents), 0600)
	if err != nil {
		slog.Warn("failed to write message dump", "id", id, "err", err)
	}
}

// MemoryOutput keeps messages in memory, mostly useful in tests.
type MemoryOutput struct {
	mutex    sync.Mutex
	Messages map[string]string
}

func NewMemoryOutput() *MemoryOutput {
	return &MemoryOutput{Messages: map[string]string{}}
}

func (o *MemoryOutput) Write(id string, contents string) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Messages[id] = contents
}

func (o *MemoryOutput) Len() int {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	return len(o.Messages)
}

var clientCounter atomic.Uint64

// Dump writes every completed request of client to output. Ids are
// "<client>-<request>" so concurrent clients sharing an output do not collide.
func Dump(client *resty.Client, output Output) {
	if output == nil {
		return
	}
	clientId := clientCounter.Add(1)
	var requestCounter atomic.Uint64
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		id := fmt.Sprintf(
			"%s-%s",
			strconv.FormatUint(clientId, 10),
			strconv.FormatUint(requestCounter.Add(1), 10),
		)
		output.Write(id, FormatMessage(res))
		return nil
	})
}
