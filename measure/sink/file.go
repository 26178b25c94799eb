package sink

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/greenbench/greenbench-sdk-go/measure/common"
)

// FileSink writes <dir>/<instance>/<variant>/<test>.json. Writes go through
// a temporary file and a rename so a reader never sees half an outcome.
type FileSink struct {
	dir string
}

func NewFileSink(dir string) (*FileSink, error) {
	if dir == "" {
		return nil, errors.New("file sink: empty directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "file sink: create %s", dir)
	}
	return &FileSink{dir: dir}, nil
}

func (f *FileSink) Path(k common.SessionKey) string {
	return filepath.Join(f.dir, pathComponent(k.InstanceID), pathComponent(k.VariantID), pathComponent(k.TestName)+".json")
}

func (f *FileSink) Persist(ctx context.Context, o *common.Outcome) error {
	data, err := Encode(o)
	if err != nil {
		return errors.Wrap(err, "file sink: encode")
	}
	path := f.Path(o.Key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "file sink: mkdir %s", filepath.Dir(path))
	}
	tmp, err := ioutil.TempFile(filepath.Dir(path), ".outcome-*")
	if err != nil {
		return errors.Wrap(err, "file sink: temp file")
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "file sink: write %s", tmp.Name())
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "file sink: close %s", tmp.Name())
	}
	return errors.Wrapf(os.Rename(tmp.Name(), path), "file sink: rename to %s", path)
}

func (f *FileSink) Close() error {
	return nil
}

var pathReplacer = strings.NewReplacer("/", "_", "\\", "_", "::", "__", ":", "_", "..", "_")

// pathComponent flattens ids such as "tests/test_a.py::test_b" into one
// safe file name. A rewritten id gets a digest of the raw id appended, so
// "a/b", "a:b" and "a_b" never share a file.
func pathComponent(s string) string {
	safe := pathReplacer.Replace(s)
	if safe == s && s != "" && s != "." {
		return s
	}
	if safe == "" || safe == "." {
		safe = "_"
	}
	digest := uuid.NewSHA1(uuid.NameSpaceURL, []byte(s)).String()
	return safe + "-" + digest[:8]
}
