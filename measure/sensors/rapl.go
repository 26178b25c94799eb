package sensors

import (
	"io/ioutil"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const defaultRAPLPath = "/sys/class/powercap/intel-rapl:0/energy_uj"

// raplCounter reads the cumulative package energy counter in joules. The
// counter wraps at max_energy_range_uj; accounting detects the wrap.
type raplCounter struct {
	path string
}

func openRAPL(path string) (*raplCounter, error) {
	if path == "" {
		path = defaultRAPLPath
	}
	c := &raplCounter{path: path}
	if _, err := c.read(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *raplCounter) read() (float64, error) {
	data, err := ioutil.ReadFile(c.path)
	if err != nil {
		return 0, errors.Wrapf(err, "rapl read %s", c.path)
	}
	uj, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "rapl parse %s", c.path)
	}
	return float64(uj) / 1e6, nil
}
