package visibility

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"
)

// DataFile is the file name looked up when a dataset path is a directory.
const DataFile = "visibilities.msgpack"

// Resolve maps a dataset location to the file holding its samples.
func Resolve(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return filepath.Join(path, DataFile), nil
	}
	return path, nil
}

// Read loads a msgpack encoded dataset from path.
func Read(path string) (*Dataset, error) {
	file, err := Resolve(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var ds Dataset
	if err := msgpack.NewDecoder(f).Decode(&ds); err != nil {
		return nil, fmt.Errorf("decode %s: %w", file, err)
	}
	if ds.Name == "" {
		ds.Name = filepath.Base(path)
	}
	return &ds, nil
}

// Write stores ds at path. A path without a file extension is treated as a
// measurement-set directory and created if needed.
func Write(path string, ds *Dataset) error {
	file := path
	if filepath.Ext(path) == ".ms" || filepath.Ext(path) == "" {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return err
		}
		file = filepath.Join(path, DataFile)
	}
	b, err := msgpack.Marshal(ds)
	if err != nil {
		return fmt.Errorf("encode dataset %q: %w", ds.Name, err)
	}
	return os.WriteFile(file, b, 0o644)
}
