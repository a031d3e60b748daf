package commands

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"MDShelf/internal/cli/service"

	"github.com/stretchr/testify/assert"
)

func TestPrintStatus_ConcurrentWritersKeepLinesWhole(t *testing.T) {
	// обычный bytes.Buffer: сериализация обеспечивается самим выводом
	var buf bytes.Buffer
	defer SetOut(&buf)()

	const writers, lines = 8, 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < lines; j++ {
				printStatus(service.StatusSync, "sync: 1 sent, 0 failed")
			}
		}()
	}
	// команда пишет в тот же вывод параллельно с фоновыми статусами
	for j := 0; j < lines; j++ {
		printStatus(service.StatusSyncAbandoned, "1 change(s) stopped retrying")
	}
	wg.Wait()

	got := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	assert.Len(t, got, (writers+1)*lines)
	for _, line := range got {
		ok := line == "• sync: 1 sent, 0 failed" || line == "! 1 change(s) stopped retrying"
		assert.True(t, ok, "повреждённая строка: %q", line)
	}
}
