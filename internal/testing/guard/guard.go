package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("MITRA_TEST_MODE") == "" {
			_ = os.Setenv("MITRA_TEST_MODE", "1")
		}
	})
}
