package metrics

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TrustWeave/LogArmor/pkg/types"
)

func TestViolationCollector(t *testing.T) {
	c := NewViolationCollector()
	assert.Equal(t, 0, c.Count())
	assert.Empty(t, c.Violations())

	c.Observe(types.Violation{Type: types.ViolationANSIEscape, Severity: types.SeverityHigh})
	c.Observe(types.Violation{Type: types.ViolationCommandExecution, Severity: types.SeverityCritical})

	require.Equal(t, 2, c.Count())
	got := c.Violations()
	assert.Equal(t, types.ViolationANSIEscape, got[0].Type)
	assert.Equal(t, types.ViolationCommandExecution, got[1].Type)

	c.Reset()
	assert.Equal(t, 0, c.Count())
	assert.Empty(t, c.Violations())
}

func TestViolationCollector_ReturnsCopy(t *testing.T) {
	c := NewViolationCollector()
	c.Observe(types.Violation{Type: types.ViolationUnicodeAttack})

	got := c.Violations()
	got[0].Type = types.ViolationControlChars

	assert.Equal(t, types.ViolationUnicodeAttack, c.Violations()[0].Type)
}

func TestViolationCollector_Concurrent(t *testing.T) {
	c := NewViolationCollector()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				c.Observe(types.Violation{Type: types.ViolationControlChars})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 400, c.Count())
}
