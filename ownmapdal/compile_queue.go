package ownmapdal

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jamesrr39/goutil/dirtraversal"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/gofs"
	"github.com/jamesrr39/goutil/logpkg"
)

const (
	PBFFileSuffix = ".pbf"

	progressPollInterval = 2 * time.Second
)

type CompileStatus int

const (
	CompileStatusQueued     CompileStatus = 1
	CompileStatusInProgress CompileStatus = 2
	CompileStatusDone       CompileStatus = 3
	CompileStatusFailed     CompileStatus = 4
)

var compileStatusNames = []string{
	"",
	"Queued",
	"In Progress",
	"Done",
	"Failed",
}

func (s CompileStatus) String() string {
	return compileStatusNames[s]
}

func (s CompileStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type OnCompiledSuccessfullyFunc func(conn CompiledMapConn)

// ProcessCompileFunc compiles the extract that pbfReader reads. rawDataFilePath is where the extract was stored.
type ProcessCompileFunc func(pbfReader PBFReader, rawDataFilePath string) (CompiledMapConn, errorsx.Error)

type OpenPBFReaderFunc func(file gofs.File) (PBFReader, errorsx.Error)

func OpenDefaultPBFReader(file gofs.File) (PBFReader, errorsx.Error) {
	pbfReader, err := NewDefaultPBFReader(file)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}
	return pbfReader, nil
}

type CompileQueueItem struct {
	RawDataFilePath string        `json:"rawDataFilePath"`
	Status          CompileStatus `json:"status"`
	ProgressPercent float64       `json:"progressPercent"`
	TimeInProgress  time.Duration `json:"timeInProgress"`
	Error           string        `json:"error,omitempty"`

	processFunc ProcessCompileFunc
	onCompiled  OnCompiledSuccessfullyFunc
}

// CompileQueue stores uploaded extracts and compiles them one at a time, in the order they were added
type CompileQueue struct {
	logger          *logpkg.Logger
	fs              gofs.Fs
	rawDataFilesDir string
	openPBFReader   OpenPBFReaderFunc
	items           []*CompileQueueItem
	mu              *sync.RWMutex
	wg              sync.WaitGroup
}

func NewCompileQueue(logger *logpkg.Logger, fs gofs.Fs, rawDataFilesDir string, openPBFReader OpenPBFReaderFunc) *CompileQueue {
	return &CompileQueue{
		logger:          logger,
		fs:              fs,
		rawDataFilesDir: rawDataFilesDir,
		openPBFReader:   openPBFReader,
		mu:              new(sync.RWMutex),
	}
}

// GetItems returns a snapshot of the queue
func (q *CompileQueue) GetItems() []CompileQueueItem {
	q.mu.RLock()
	defer q.mu.RUnlock()

	items := make([]CompileQueueItem, len(q.items))
	for i, item := range q.items {
		items[i] = *item
	}
	return items
}

// Wait blocks until every item added so far has been processed
func (q *CompileQueue) Wait() {
	q.wg.Wait()
}

func (q *CompileQueue) AddItemToQueue(rawData io.Reader, fileName string, processFunc ProcessCompileFunc, onCompiled OnCompiledSuccessfullyFunc) errorsx.Error {
	var err error

	tryingToGoUp := dirtraversal.IsTryingToTraverseUp(fileName)
	if tryingToGoUp {
		return errorsx.Errorf("not allowed to traverse up with filename %q", fileName)
	}

	rawDataFilePath, err := GenerateFilePathForNewDiskFile(q.fs, q.rawDataFilesDir, fileName, PBFFileSuffix)
	if err != nil {
		return errorsx.Wrap(err)
	}

	f, err := q.fs.Create(rawDataFilePath)
	if err != nil {
		return errorsx.Wrap(err)
	}
	defer f.Close()

	_, err = io.Copy(f, rawData)
	if err != nil {
		return errorsx.Wrap(err)
	}

	item := &CompileQueueItem{
		RawDataFilePath: rawDataFilePath,
		Status:          CompileStatusQueued,
		processFunc:     processFunc,
		onCompiled:      onCompiled,
	}

	q.wg.Add(1)

	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()

	q.startNextItem()

	return nil
}

// startNextItem starts the first queued item, unless an item is already in progress
func (q *CompileQueue) startNextItem() {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, item := range q.items {
		if item.Status == CompileStatusInProgress {
			// there is already a compile in progress. It starts the next item when it finishes.
			return
		}
	}

	for _, item := range q.items {
		if item.Status == CompileStatusQueued {
			item.Status = CompileStatusInProgress
			go q.runItem(item)
			return
		}
	}
}

func (q *CompileQueue) runItem(item *CompileQueueItem) {
	defer q.wg.Done()

	conn, err := q.compileQueueItem(item)

	q.mu.Lock()
	if err != nil {
		q.logger.Error("failed to compile queue item. Raw Data file: %q.\nError: %q\nStack: %s\n",
			item.RawDataFilePath, err.Error(), err.Stack())
		item.Status = CompileStatusFailed
		item.Error = err.Error()
	} else {
		item.Status = CompileStatusDone
		item.ProgressPercent = 100
	}
	q.mu.Unlock()

	if err == nil {
		item.onCompiled(conn)
	}

	q.startNextItem()
}

func (q *CompileQueue) compileQueueItem(item *CompileQueueItem) (CompiledMapConn, errorsx.Error) {
	rawDataFile, err := q.fs.Open(item.RawDataFilePath)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}
	defer rawDataFile.Close()

	pbfReader, openErr := q.openPBFReader(rawDataFile)
	if openErr != nil {
		return nil, errorsx.Wrap(openErr)
	}

	closer, ok := pbfReader.(io.Closer)
	if ok {
		defer closer.Close()
	}

	startTime := time.Now()
	doneChan := make(chan struct{})
	defer close(doneChan)

	go func() {
		ticker := time.NewTicker(progressPollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-doneChan:
				return
			case <-ticker.C:
				q.mu.Lock()
				item.TimeInProgress = time.Since(startTime)
				item.ProgressPercent = scanProgressPercent(pbfReader)
				q.mu.Unlock()
			}
		}
	}()

	conn, processErr := item.processFunc(pbfReader, item.RawDataFilePath)
	if processErr != nil {
		return nil, errorsx.Wrap(processErr)
	}

	q.mu.Lock()
	item.TimeInProgress = time.Since(startTime)
	q.mu.Unlock()

	return conn, nil
}

// GenerateFilePathForNewDiskFile finds a file path in dirPath that is not in use yet.
// Clashing names get a numbered suffix.
func GenerateFilePathForNewDiskFile(fs gofs.Fs, dirPath, fileName, suffix string) (string, errorsx.Error) {
	fileName = strings.TrimSuffix(fileName, suffix)

	for i := 0; i < 1000000; i++ {
		var id string
		if i != 0 {
			id = fmt.Sprintf("_%d", i)
		}

		filePath := filepath.Join(dirPath, fmt.Sprintf("%s%s%s", fileName, id, suffix))

		_, err := fs.Stat(filePath)
		if err == nil {
			// file already exists
			continue
		}

		if !os.IsNotExist(err) {
			return "", errorsx.Wrap(err)
		}

		return filePath, nil
	}

	return "", errorsx.Errorf("ran out of numbers for suffix")
}
