package routine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/routine/internal/config"
)

func memoryConfig() config.Config {
	return config.Config{
		SessionIdentity: "shared-user",
		DebounceWindow:  20 * time.Millisecond,
	}
}

func TestTwoSessionsOnOneEngineStayInSync(t *testing.T) {
	engine := NewMemoryEngine(memoryConfig())
	defer engine.Close()

	ctx := context.Background()
	date := DateKey("2024-03-01")

	first := engine.NewSession()
	t.Cleanup(first.Close)
	require.NoError(t, first.Start(ctx, date))

	second := engine.NewSession()
	t.Cleanup(second.Close)
	require.NoError(t, second.Start(ctx, date))

	require.NoError(t, first.ToggleActivity(ctx, 0))

	// The overwrite fans out through the shared store to the other session.
	require.Eventually(t, func() bool {
		view := second.Current()
		return len(view.Schedule) > 0 && view.Schedule[0].IsDone
	}, time.Second, 5*time.Millisecond)
}

func TestDebouncedCommentReachesOtherSession(t *testing.T) {
	engine := NewMemoryEngine(memoryConfig())
	defer engine.Close()

	ctx := context.Background()
	date := DateKey("2024-03-01")

	writer := engine.NewSession()
	t.Cleanup(writer.Close)
	require.NoError(t, writer.Start(ctx, date))

	reader := engine.NewSession()
	t.Cleanup(reader.Close)
	require.NoError(t, reader.Start(ctx, date))

	require.NoError(t, writer.UpdateComment(ctx, 1, "short walk after lunch"))

	require.Eventually(t, func() bool {
		view := reader.Current()
		return len(view.Schedule) > 1 && view.Schedule[1].Comment == "short walk after lunch"
	}, time.Second, 5*time.Millisecond)
}

func TestDefaultTemplateIsExposed(t *testing.T) {
	template := DefaultTemplate()
	require.NotEmpty(t, template)
	require.Equal(t, "Wake up & wudu", template[0].Description)
	require.Equal(t, "Sleep", template[len(template)-1].Description)
}
