package shuffle

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mrlite/mrlite/pkg/log"
	"github.com/mrlite/mrlite/pkg/metrics"
	"github.com/mrlite/mrlite/pkg/remote"
	"github.com/mrlite/mrlite/pkg/types"
)

// Intermediate partition files are named
//
//	<output_path>/<identity>-mapper-<mmmmm>-reducer-<rrrrr>-<seq>
//
// where mmmmm is the producing mapper's 5-digit rank and rrrrr the 5-digit
// local index of the destination reducer. The identity may itself contain
// '-', so parsing always works from the right.

// MapperPattern returns the glob matching every partition a mapper wrote.
func MapperPattern(outputPath, identity string, mapperRank int) string {
	return fmt.Sprintf("%s/%s-mapper-%05d-reducer-*", outputPath, identity, mapperRank)
}

// ReducerPattern returns the glob matching every partition destined for a
// reducer's local index.
func ReducerPattern(inputPath, identity string, reducerIndex int) string {
	return fmt.Sprintf("%s/%s-mapper-*-reducer-%05d-*", inputPath, identity, reducerIndex)
}

// ParsePartition extracts the mapper rank and destination reducer index
// from a partition filename. The last four '-'-separated segments are
// "<mmmmm>", "reducer", "<rrrrr>", "<seq>".
func ParsePartition(filename string) (mapperRank, reducerIndex int, err error) {
	fields := rsplit(filename, '-', 4)
	if len(fields) != 5 || fields[2] != "reducer" {
		return 0, 0, fmt.Errorf("malformed partition filename %q", filename)
	}
	mapperRank, err = strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, fmt.Errorf("malformed mapper id in %q: %w", filename, err)
	}
	reducerIndex, err = strconv.Atoi(fields[3])
	if err != nil {
		return 0, 0, fmt.Errorf("malformed reducer id in %q: %w", filename, err)
	}
	return mapperRank, reducerIndex, nil
}

// Mover relocates a finished mapper's partition files to their destination
// reducers: left alone when source and destination coincide, moved locally
// when only the host matches, otherwise copied remotely and deleted here.
type Mover struct {
	runner remote.Runner
	cfg    *types.JobConfig
	rank   int
	logger zerolog.Logger

	// glob is swapped in tests; defaults to filepath.Glob.
	glob func(pattern string) ([]string, error)
}

// NewMover creates the mover for the mapper at rank.
func NewMover(runner remote.Runner, cfg *types.JobConfig, rank int) *Mover {
	return &Mover{
		runner: runner,
		cfg:    cfg,
		rank:   rank,
		logger: log.WithComponent("shuffle"),
		glob:   filepath.Glob,
	}
}

// Push relocates every partition this mapper produced. A mapper that
// produced nothing for some (or every) reducer is legitimate, so an empty
// match set is not an error.
func (m *Mover) Push() error {
	task := m.cfg.Task(m.rank)
	pattern := MapperPattern(task.OutputPath, m.cfg.Identity, m.rank)
	files, err := m.glob(pattern)
	if err != nil {
		return fmt.Errorf("failed to glob %s: %w", pattern, err)
	}

	for _, file := range files {
		mapperRank, reducerIndex, err := ParsePartition(file)
		if err != nil {
			return err
		}
		if mapperRank != m.rank {
			return fmt.Errorf("partition %s does not belong to mapper %d", file, m.rank)
		}

		destRank := reducerIndex + m.cfg.NumMapWorkers
		if destRank >= m.cfg.NumWorkers() {
			return fmt.Errorf("partition %s routes to reducer %d, but the job has %d reducers",
				file, reducerIndex, m.cfg.NumReduceWorkers)
		}
		dest := m.cfg.Task(destRank)

		m.logger.Debug().
			Str("file", file).
			Str("from", task.Host).
			Str("to", dest.Host).
			Msg("Pushing reduce buffer")

		switch {
		case dest.Host == task.Host && dest.InputPath == task.OutputPath:
			// Already where the reducer will look for it.
			metrics.ShuffleFilesMoved.WithLabelValues("stayed").Inc()
		case dest.Host == task.Host:
			if err := remote.RunAndWait(m.runner, fmt.Sprintf("mv %s %s", file, dest.InputPath)); err != nil {
				return fmt.Errorf("failed to move %s: %w", file, err)
			}
			metrics.ShuffleFilesMoved.WithLabelValues("moved").Inc()
		default:
			if err := m.runner.CopyFiles([]string{file}, map[string]string{dest.Host: dest.InputPath}); err != nil {
				return fmt.Errorf("failed to push %s to %s: %w", file, dest.Host, err)
			}
			if err := remote.RunAndWait(m.runner, "rm -rf "+file); err != nil {
				return fmt.Errorf("failed to remove pushed buffer %s: %w", file, err)
			}
			metrics.ShuffleFilesMoved.WithLabelValues("pushed").Inc()
		}
	}
	return nil
}

// rsplit splits s on the last n occurrences of sep, like a right-to-left
// strings.SplitN.
func rsplit(s string, sep byte, n int) []string {
	parts := make([]string, 0, n+1)
	for i := 0; i < n; i++ {
		idx := strings.LastIndexByte(s, sep)
		if idx < 0 {
			break
		}
		parts = append(parts, s[idx+1:])
		s = s[:idx]
	}
	parts = append(parts, s)

	// Reverse into natural order.
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return parts
}
