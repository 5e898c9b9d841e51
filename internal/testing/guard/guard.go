package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("MATBAA_TEST_MODE") == "" {
			_ = os.Setenv("MATBAA_TEST_MODE", "1")
		}
	})
}
