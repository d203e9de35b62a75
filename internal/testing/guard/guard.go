package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("COMPENSATION_TEST_MODE") == "" {
			_ = os.Setenv("COMPENSATION_TEST_MODE", "1")
		}
	})
}
