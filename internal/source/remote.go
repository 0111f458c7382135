package source

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/withObsrvr/obsrvr-log-archiver/internal/config"
	"github.com/withObsrvr/obsrvr-log-archiver/internal/kube"
)

// RemoteSource enumerates known log files inside the running pods of a workload.
type RemoteSource struct {
	client    kube.Client
	namespace string
	selector  string
	locations map[string]config.Location
	log       *slog.Logger
}

// NewRemoteSource creates an enumerator for pods labelled app=workload.
func NewRemoteSource(client kube.Client, namespace, workload string, locations map[string]config.Location) *RemoteSource {
	return &RemoteSource{
		client:    client,
		namespace: namespace,
		selector:  "app=" + workload,
		locations: locations,
		log:       slog.With("component", "source", "source", "remote", "namespace", namespace),
	}
}

// Namespace returns the namespace being enumerated.
func (s *RemoteSource) Namespace() string {
	return s.namespace
}

// LocationNames returns the configured location names in a stable order.
func (s *RemoteSource) LocationNames() []string {
	names := make([]string, 0, len(s.locations))
	for name := range s.locations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Location returns the named location.
func (s *RemoteSource) Location(name string) (config.Location, bool) {
	loc, ok := s.locations[name]
	return loc, ok
}

// Pods returns the running pods of the workload.
func (s *RemoteSource) Pods(ctx context.Context) ([]string, error) {
	pods, err := s.client.ListRunningPods(ctx, s.namespace, s.selector)
	if err != nil {
		return nil, fmt.Errorf("list running pods: %w", err)
	}
	s.log.Info("found running pods", "selector", s.selector, "pods", len(pods))
	return pods, nil
}

// EnumeratePod lists one location inside pod and returns the entries whose
// name starts with the stem of a known filename.
func (s *RemoteSource) EnumeratePod(ctx context.Context, pod, name string, loc config.Location) ([]Candidate, error) {
	out, err := s.client.Exec(ctx, s.namespace, pod, []string{"/bin/sh", "-c", "ls -1 " + loc.Path})
	if err != nil {
		return nil, fmt.Errorf("list %s in %s: %w", loc.Path, pod, err)
	}

	entries := splitLines(out)
	seen := make(map[string]struct{})
	var candidates []Candidate

	for _, known := range loc.Files {
		stem := strings.ReplaceAll(known, ".log", "")
		for _, entry := range entries {
			if !strings.HasPrefix(entry, stem) {
				continue
			}
			if _, dup := seen[entry]; dup {
				continue
			}
			seen[entry] = struct{}{}
			candidates = append(candidates, Candidate{
				SourcePath:     path.Join(loc.Path, entry),
				SourceIdentity: pod,
				Filename:       entry,
				Namespace:      s.namespace,
			})
		}
	}

	s.log.Debug("enumerated pod location", "pod", pod, "location", name, "files", len(candidates))
	return candidates, nil
}

// Enumerate walks every running pod and location. Listing failures are logged
// and skipped.
func (s *RemoteSource) Enumerate(ctx context.Context) ([]Candidate, error) {
	pods, err := s.Pods(ctx)
	if err != nil {
		return nil, err
	}

	var all []Candidate
	for _, pod := range pods {
		for _, name := range s.LocationNames() {
			if err := ctx.Err(); err != nil {
				return all, err
			}
			found, err := s.EnumeratePod(ctx, pod, name, s.locations[name])
			if err != nil {
				s.log.Error("failed to list pod location", "pod", pod, "location", name, "error", err)
				continue
			}
			all = append(all, found...)
		}
	}
	return all, nil
}

func splitLines(b []byte) []string {
	var lines []string
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

var _ Enumerator = (*RemoteSource)(nil)
