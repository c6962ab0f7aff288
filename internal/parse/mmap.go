package parse

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// mappedFile is a read-only memory mapping of a log file, bounding the
// working set for large inputs. Empty or irregular files fall back to a
// plain read.
type mappedFile struct {
	data   []byte
	mapped bool
}

func mapFile(path string) (*mappedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	size := info.Size()
	if size == 0 || !info.Mode().IsRegular() {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		return &mappedFile{data: data}, nil
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		// Some filesystems refuse mmap; a plain read still works.
		fallback, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil, fmt.Errorf("mmap %s: %w", path, err)
		}
		return &mappedFile{data: fallback}, nil
	}

	return &mappedFile{data: data, mapped: true}, nil
}

func (m *mappedFile) Close() error {
	if !m.mapped {
		return nil
	}
	data := m.data
	m.data = nil
	m.mapped = false
	return unix.Munmap(data)
}
