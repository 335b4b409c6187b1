package saga

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestExecute_AllStepsSucceed(t *testing.T) {
	var order []string
	sg := New("test", zap.NewNop())
	sg.AddStep(Step{Name: "a", Execute: func(ctx context.Context) error { order = append(order, "a"); return nil }})
	sg.AddStep(Step{Name: "b", Execute: func(ctx context.Context) error { order = append(order, "b"); return nil }})

	require.NoError(t, sg.Execute(context.Background()))
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestExecute_CompensatesInReverseOrder(t *testing.T) {
	var order []string
	boom := errors.New("step c failed")

	sg := New("test", zap.NewNop())
	sg.AddStep(Step{
		Name:       "a",
		Execute:    func(ctx context.Context) error { order = append(order, "a"); return nil },
		Compensate: func(ctx context.Context) error { order = append(order, "undo-a"); return nil },
	})
	sg.AddStep(Step{
		Name:       "b",
		Execute:    func(ctx context.Context) error { order = append(order, "b"); return nil },
		Compensate: func(ctx context.Context) error { order = append(order, "undo-b"); return nil },
	})
	sg.AddStep(Step{
		Name:    "c",
		Execute: func(ctx context.Context) error { return boom },
	})

	err := sg.Execute(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"a", "b", "undo-b", "undo-a"}, order)
}

func TestExecute_SkipsNilCompensation(t *testing.T) {
	var compensated bool
	sg := New("test", zap.NewNop())
	sg.AddStep(Step{
		Name:       "a",
		Execute:    func(ctx context.Context) error { return nil },
		Compensate: func(ctx context.Context) error { compensated = true; return nil },
	})
	sg.AddStep(Step{Name: "b", Execute: func(ctx context.Context) error { return nil }, Compensate: nil})
	sg.AddStep(Step{Name: "c", Execute: func(ctx context.Context) error { return errors.New("fail") }})

	require.Error(t, sg.Execute(context.Background()))
	assert.True(t, compensated, "earlier compensation still runs past a nil one")
}

func TestExecute_CompensationFailureDoesNotStopOthers(t *testing.T) {
	var order []string
	sg := New("test", zap.NewNop())
	sg.AddStep(Step{
		Name:       "a",
		Execute:    func(ctx context.Context) error { return nil },
		Compensate: func(ctx context.Context) error { order = append(order, "undo-a"); return nil },
	})
	sg.AddStep(Step{
		Name:       "b",
		Execute:    func(ctx context.Context) error { return nil },
		Compensate: func(ctx context.Context) error { return errors.New("compensation broke") },
	})
	sg.AddStep(Step{Name: "c", Execute: func(ctx context.Context) error { return errors.New("fail") }})

	require.Error(t, sg.Execute(context.Background()))
	assert.Equal(t, []string{"undo-a"}, order)
}
