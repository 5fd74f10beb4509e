package scancode

import (
	"testing"

	"github.com/songokas/hvents/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestDispatchFiresOnMatchingCode(t *testing.T) {
	var fired []string
	r := New(func(eventName string, data models.Data, metadata map[string]string) {
		fired = append(fired, eventName)
		assert.Equal(t, "dev0", metadata["device"])
	})
	r.AddFilter("power_key", "dev0", 116)
	r.AddFilter("volume_key", "dev0", 115)

	r.dispatch("dev0", 116, 1)
	r.dispatch("dev0", 999, 1)

	assert.Equal(t, []string{"power_key"}, fired)
}

func TestDispatchIgnoresOtherDevice(t *testing.T) {
	var fired int
	r := New(func(string, models.Data, map[string]string) { fired++ })
	r.AddFilter("power_key", "dev0", 116)

	r.dispatch("dev1", 116, 1)

	assert.Equal(t, 0, fired)
}
