package clipboard

import (
	"errors"
	"sync"

	"golang.design/x/clipboard"
)

// ErrNoImage is returned when the clipboard holds no image data.
var ErrNoImage = errors.New("clipboard does not contain an image")

var (
	writeMu  sync.Mutex
	initOnce sync.Once
	initErr  error
)

// Init prepares the system clipboard. It is safe to call more than once.
func Init() error {
	initOnce.Do(func() { initErr = clipboard.Init() })
	return initErr
}

// Write performs a mutex-guarded clipboard write to prevent corruption under parallel writes.
func Write(text string) error {
	if err := Init(); err != nil {
		return err
	}
	writeMu.Lock()
	defer writeMu.Unlock()
	clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}

// ReadImage returns the PNG currently on the clipboard, for example a snip
// taken with the OS screenshot tool.
func ReadImage() ([]byte, error) {
	if err := Init(); err != nil {
		return nil, err
	}
	data := clipboard.Read(clipboard.FmtImage)
	if len(data) == 0 {
		return nil, ErrNoImage
	}
	return data, nil
}
