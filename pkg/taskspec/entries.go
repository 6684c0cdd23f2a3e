package taskspec

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mrlite/mrlite/pkg/types"
)

// entry is one "{hosts}:field:..." clause of an io spec, already split and
// host-expanded.
type entry struct {
	hosts  []string
	fields []string
}

// parseEntries splits spec on ';' and parses each clause. want is the total
// field count per clause, the host list included.
func (p *parser) parseEntries(name, spec string, want int) ([]entry, error) {
	var entries []entry
	for _, clause := range splitFields(spec, ";") {
		if !strings.HasPrefix(clause, "{") {
			return nil, fmt.Errorf("%w: %s entry %q must start with a {hosts} list", ErrInvalidSpec, name, clause)
		}
		end := strings.Index(clause, "}")
		if end < 0 {
			return nil, fmt.Errorf("%w: %s entry %q has an unterminated host list", ErrInvalidSpec, name, clause)
		}
		hosts, err := p.resolveHosts(clause[1:end])
		if err != nil {
			return nil, err
		}

		rest := strings.TrimSpace(clause[end+1:])
		rest = strings.TrimPrefix(rest, ":")
		fields := splitFields(rest, ":")
		if len(fields) != want-1 {
			return nil, fmt.Errorf("%w: %s entry %q has %d fields, want %d",
				ErrInvalidSpec, name, clause, len(fields)+1, want)
		}
		entries = append(entries, entry{hosts: hosts, fields: fields})
	}
	return entries, nil
}

// parseHostPathSpec parses "{hosts}path;..." into a host-to-path map. Paths
// are cleaned when cleanPath is set; otherwise only trailing '/' characters
// are removed, since a log filebase is a filename prefix, not a directory.
func (p *parser) parseHostPathSpec(name, spec string, cleanPath bool) (map[string]string, error) {
	result := make(map[string]string)
	for _, clause := range splitFields(spec, ";") {
		if !strings.HasPrefix(clause, "{") {
			return nil, fmt.Errorf("%w: %s entry %q must start with a {hosts} list", ErrInvalidSpec, name, clause)
		}
		end := strings.Index(clause, "}")
		if end < 0 {
			return nil, fmt.Errorf("%w: %s entry %q has an unterminated host list", ErrInvalidSpec, name, clause)
		}
		path := strings.TrimSpace(clause[end+1:])
		if path == "" {
			return nil, fmt.Errorf("%w: %s entry %q has an empty path", ErrInvalidSpec, name, clause)
		}
		if cleanPath {
			path = filepath.Clean(path)
		} else {
			path = strings.TrimRight(path, "/")
		}
		hosts, err := p.resolveHosts(clause[1:end])
		if err != nil {
			return nil, err
		}
		for _, host := range hosts {
			result[host] = path
		}
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("%w: %s spec is empty", ErrInvalidSpec, name)
	}
	return result, nil
}

// parseMapTasks expands a two-phase map io spec:
// {hosts}:class:input_format:input_path:output_path
func (p *parser) parseMapTasks(spec string, tmpDirs, logFilebases map[string]string) ([]types.Task, error) {
	entries, err := p.parseEntries("map-io", spec, 5)
	if err != nil {
		return nil, err
	}
	var tasks []types.Task
	for _, e := range entries {
		class, inputFormat, inputPath, outputPath := e.fields[0], e.fields[1], e.fields[2], e.fields[3]
		if !types.Format(inputFormat).Valid() {
			return nil, fmt.Errorf("%w: unknown input format %q", ErrInvalidSpec, inputFormat)
		}
		for _, host := range e.hosts {
			tasks = append(tasks, types.Task{
				Host:        host,
				Class:       class,
				InputFormat: types.Format(inputFormat),
				InputPath:   inputPath,
				// Two-phase mappers emit intermediate partitions, so
				// they carry no output format.
				OutputFormat: types.FormatNone,
				OutputPath:   outputPath,
				TmpDir:       tmpDirs[host],
				LogFilebase:  logFilebases[host],
			})
		}
	}
	return tasks, nil
}

// parseReduceTasks expands a reduce io spec:
// {hosts}:class:input_path:output_format:output_path
func (p *parser) parseReduceTasks(spec string, tmpDirs, logFilebases map[string]string) ([]types.Task, error) {
	entries, err := p.parseEntries("reduce-io", spec, 5)
	if err != nil {
		return nil, err
	}
	var tasks []types.Task
	for _, e := range entries {
		class, inputPath, outputFormat, outputPath := e.fields[0], e.fields[1], e.fields[2], e.fields[3]
		if !types.Format(outputFormat).Valid() {
			return nil, fmt.Errorf("%w: unknown output format %q", ErrInvalidSpec, outputFormat)
		}
		for _, host := range e.hosts {
			tasks = append(tasks, types.Task{
				Host:         host,
				Class:        class,
				InputFormat:  types.FormatNone,
				InputPath:    inputPath,
				OutputFormat: types.Format(outputFormat),
				OutputPath:   outputPath,
				TmpDir:       tmpDirs[host],
				LogFilebase:  logFilebases[host],
			})
		}
	}
	return tasks, nil
}

// parseMapOnlyTasks expands a map-only io spec:
// {hosts}:class:input_format:input_path:output_format:output_path
func (p *parser) parseMapOnlyTasks(spec string, tmpDirs, logFilebases map[string]string) ([]types.Task, error) {
	entries, err := p.parseEntries("maponly-map-io", spec, 6)
	if err != nil {
		return nil, err
	}
	var tasks []types.Task
	for _, e := range entries {
		class, inputFormat, inputPath := e.fields[0], e.fields[1], e.fields[2]
		outputFormat, outputPath := e.fields[3], e.fields[4]
		if !types.Format(inputFormat).Valid() {
			return nil, fmt.Errorf("%w: unknown input format %q", ErrInvalidSpec, inputFormat)
		}
		if !types.Format(outputFormat).Valid() {
			return nil, fmt.Errorf("%w: unknown output format %q", ErrInvalidSpec, outputFormat)
		}
		for _, host := range e.hosts {
			tasks = append(tasks, types.Task{
				Host:         host,
				Class:        class,
				InputFormat:  types.Format(inputFormat),
				InputPath:    inputPath,
				OutputFormat: types.Format(outputFormat),
				OutputPath:   outputPath,
				TmpDir:       tmpDirs[host],
				LogFilebase:  logFilebases[host],
			})
		}
	}
	return tasks, nil
}
