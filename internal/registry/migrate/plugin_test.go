package migrate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingMigrator struct {
	name string
	log  *[]string
	err  error
}

func (m recordingMigrator) Name() string { return m.name }

func (m recordingMigrator) Migrate(context.Context) error {
	*m.log = append(*m.log, m.name)
	return m.err
}

func TestRunAllInOrder(t *testing.T) {
	saved := plugins
	t.Cleanup(func() { plugins = saved })
	plugins = nil

	var ran []string
	Register(Plugin{Order: 200, Migrator: recordingMigrator{name: "indexes", log: &ran}})
	Register(Plugin{Order: 100, Migrator: recordingMigrator{name: "collections", log: &ran}})

	require.Equal(t, []string{"collections", "indexes"}, Names())
	require.NoError(t, RunAll(context.Background()))
	require.Equal(t, []string{"collections", "indexes"}, ran)
}

func TestRunAllStopsOnFailure(t *testing.T) {
	saved := plugins
	t.Cleanup(func() { plugins = saved })
	plugins = nil

	var ran []string
	boom := errors.New("boom")
	Register(Plugin{Order: 1, Migrator: recordingMigrator{name: "first", log: &ran, err: boom}})
	Register(Plugin{Order: 2, Migrator: recordingMigrator{name: "second", log: &ran}})

	err := RunAll(context.Background())
	require.ErrorIs(t, err, boom)
	require.Contains(t, err.Error(), "first")
	require.Equal(t, []string{"first"}, ran)
}
