package shuffle

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlite/mrlite/pkg/log"
	"github.com/mrlite/mrlite/pkg/remote"
	"github.com/mrlite/mrlite/pkg/types"
)

func TestMain(m *testing.M) {
	log.Init(log.Config{Level: log.ErrorLevel})
	os.Exit(m.Run())
}

// fakeRunner records commands and copies instead of shelling out. Local
// "mv"/"rm -rf" commands are applied to the real filesystem so tests can
// observe the resulting tree.
type fakeRunner struct {
	commands []string
	copies   []copyCall
}

type copyCall struct {
	files    []string
	hostDirs map[string]string
}

type doneHandle struct{}

func (doneHandle) PID() int          { return 1 }
func (doneHandle) Wait() error       { return nil }
func (doneHandle) Poll() (bool, int) { return true, 0 }
func (doneHandle) Kill() error       { return nil }

func (r *fakeRunner) Run(cmd string) (remote.Handle, error) {
	r.commands = append(r.commands, cmd)
	switch {
	case strings.HasPrefix(cmd, "mv "):
		fields := strings.Fields(cmd)
		src, destDir := fields[1], fields[2]
		if err := os.Rename(src, filepath.Join(destDir, filepath.Base(src))); err != nil {
			return nil, err
		}
	case strings.HasPrefix(cmd, "rm -rf "):
		if err := os.RemoveAll(strings.TrimPrefix(cmd, "rm -rf ")); err != nil {
			return nil, err
		}
	}
	return doneHandle{}, nil
}

func (r *fakeRunner) RunOn(host, cmd string) (remote.Handle, error) {
	r.commands = append(r.commands, fmt.Sprintf("[%s] %s", host, cmd))
	return doneHandle{}, nil
}

func (r *fakeRunner) CopyFiles(files []string, hostDirs map[string]string) error {
	r.copies = append(r.copies, copyCall{files: files, hostDirs: hostDirs})
	return nil
}

func TestParsePartition(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		wantMapper  int
		wantReducer int
		wantErr     bool
	}{
		{
			name:        "plain",
			filename:    "/tmp/out/wc-bob-2026-08-02-10-30-mapper-00003-reducer-00002-00000000",
			wantMapper:  3,
			wantReducer: 2,
		},
		{
			name:        "identity with many dashes",
			filename:    "/o/a-b-c-d-mapper-00000-reducer-00011-00000007",
			wantMapper:  0,
			wantReducer: 11,
		},
		{name: "missing reducer segment", filename: "/o/id-mapper-00001-00000000", wantErr: true},
		{name: "non-numeric mapper id", filename: "/o/id-mapper-xyz-reducer-00001-0", wantErr: true},
		{name: "too few segments", filename: "plain", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapperRank, reducerIndex, err := ParsePartition(tt.filename)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMapper, mapperRank)
			assert.Equal(t, tt.wantReducer, reducerIndex)
		})
	}
}

// TestPartitionRouting tests the spec'd example: mapper 3's file for
// reducer 2 with 5 map workers routes to global rank 7.
func TestPartitionRouting(t *testing.T) {
	_, reducerIndex, err := ParsePartition("/o/id-mapper-00003-reducer-00002-00000000")
	require.NoError(t, err)
	assert.Equal(t, 7, reducerIndex+5)
}

// shuffleConfig builds a 1 mapper + 2 reducer job rooted in tmp dirs.
func shuffleConfig(t *testing.T, mapperHost, reducer0Host, reducer1Host string) (*types.JobConfig, string, string) {
	t.Helper()
	outDir := t.TempDir()
	inDir := t.TempDir()
	cfg := &types.JobConfig{
		Identity:         "wc-bob-2026-08-02-10-30",
		NumMapWorkers:    1,
		NumReduceWorkers: 2,
		Tasks: []types.Task{
			{Host: mapperHost, Class: "M", OutputPath: outDir},
			{Host: reducer0Host, Class: "R", InputPath: outDir},
			{Host: reducer1Host, Class: "R", InputPath: inDir},
		},
	}
	return cfg, outDir, inDir
}

func writePartition(t *testing.T, dir, identity string, mapper, reducer, seq int) string {
	t.Helper()
	name := filepath.Join(dir, fmt.Sprintf("%s-mapper-%05d-reducer-%05d-%08d", identity, mapper, reducer, seq))
	require.NoError(t, os.WriteFile(name, []byte("kv"), 0644))
	return name
}

// TestMoverColocation tests the stay and remote-push outcomes together:
// a partition for a colocated reducer reading the mapper's own output
// directory is left in place, a partition for a reducer on another host is
// copied remotely and deleted at the source.
func TestMoverColocation(t *testing.T) {
	cfg, outDir, inDir := shuffleConfig(t, "h1", "h1", "h2")
	cfg.Tasks[1].InputPath = outDir

	stay := writePartition(t, outDir, cfg.Identity, 0, 0, 0)
	push := writePartition(t, outDir, cfg.Identity, 0, 1, 0)

	runner := &fakeRunner{}
	require.NoError(t, NewMover(runner, cfg, 0).Push())

	assert.FileExists(t, stay)

	require.Len(t, runner.copies, 1)
	assert.Equal(t, []string{push}, runner.copies[0].files)
	assert.Equal(t, map[string]string{"h2": inDir}, runner.copies[0].hostDirs)
	assert.NoFileExists(t, push)
}

// TestMoverLocalMove tests the same-host different-directory case.
func TestMoverLocalMove(t *testing.T) {
	cfg, outDir, _ := shuffleConfig(t, "h1", "h1", "h1")
	localDir := t.TempDir()
	cfg.Tasks[1].InputPath = localDir
	cfg.Tasks[2].InputPath = localDir

	f := writePartition(t, outDir, cfg.Identity, 0, 0, 0)

	runner := &fakeRunner{}
	require.NoError(t, NewMover(runner, cfg, 0).Push())

	assert.NoFileExists(t, f)
	assert.FileExists(t, filepath.Join(localDir, filepath.Base(f)))
	assert.Empty(t, runner.copies)
}

func TestMoverEmptySetIsNotAnError(t *testing.T) {
	cfg, _, _ := shuffleConfig(t, "h1", "h1", "h2")
	runner := &fakeRunner{}
	require.NoError(t, NewMover(runner, cfg, 0).Push())
	assert.Empty(t, runner.commands)
	assert.Empty(t, runner.copies)
}

func TestMoverRejectsForeignPartition(t *testing.T) {
	cfg, outDir, _ := shuffleConfig(t, "h1", "h1", "h2")
	// A file claiming mapper rank 7 inside mapper 0's glob cannot happen
	// with well-formed names, so force it through a fake glob.
	bad := filepath.Join(outDir, cfg.Identity+"-mapper-00007-reducer-00000-00000000")
	require.NoError(t, os.WriteFile(bad, nil, 0644))

	m := NewMover(&fakeRunner{}, cfg, 0)
	m.glob = func(string) ([]string, error) { return []string{bad}, nil }
	assert.Error(t, m.Push())
}

func TestMoverRejectsOutOfRangeReducer(t *testing.T) {
	cfg, outDir, _ := shuffleConfig(t, "h1", "h1", "h2")
	writePartition(t, outDir, cfg.Identity, 0, 9, 0)

	err := NewMover(&fakeRunner{}, cfg, 0).Push()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reducer")
}

func TestPrepareRenamesDensely(t *testing.T) {
	cfg, _, inDir := shuffleConfig(t, "h1", "h1", "h1")

	writePartition(t, inDir, cfg.Identity, 0, 1, 0)
	writePartition(t, inDir, cfg.Identity, 3, 1, 2)
	writePartition(t, inDir, cfg.Identity, 7, 1, 5)

	count, err := Prepare(cfg, 2) // reducer with local index 1
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	entries, err := filepath.Glob(filepath.Join(inDir, "*"))
	require.NoError(t, err)
	sort.Strings(entries)

	want := []string{
		filepath.Join(inDir, cfg.Identity+"-0000000000"),
		filepath.Join(inDir, cfg.Identity+"-0000000001"),
		filepath.Join(inDir, cfg.Identity+"-0000000002"),
	}
	assert.Equal(t, want, entries)
}

func TestPrepareIgnoresOtherReducersFiles(t *testing.T) {
	cfg, _, inDir := shuffleConfig(t, "h1", "h1", "h1")

	mine := writePartition(t, inDir, cfg.Identity, 0, 1, 0)
	other := writePartition(t, inDir, cfg.Identity, 0, 0, 0)

	count, err := Prepare(cfg, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.NoFileExists(t, mine)
	assert.FileExists(t, other)
}

func TestPrepareZeroFilesIsFatal(t *testing.T) {
	cfg, _, _ := shuffleConfig(t, "h1", "h1", "h1")
	_, err := Prepare(cfg, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to find reduce buffers")
}
