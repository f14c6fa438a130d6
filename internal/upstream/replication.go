package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/openaedmap/aedcore/internal/core/apperr"
	"github.com/openaedmap/aedcore/internal/core/observability"
)

// ReplicationState names a point on the minute-diff sequence.
type ReplicationState struct {
	Number    int
	Timestamp float64
}

var (
	sequenceNumberPattern = regexp.MustCompile(`sequenceNumber=(\d+)`)
	timestampPattern      = regexp.MustCompile(`timestamp=(\S+)`)
)

// formatSequenceNumber renders seq as the zero-padded, slash-grouped
// path segment the replication server expects, e.g. 000/123/456.
func formatSequenceNumber(seq int) string {
	s := fmt.Sprintf("%09d", seq)
	return s[0:3] + "/" + s[3:6] + "/" + s[6:9]
}

// FetchState fetches state.txt (or NNN.state.txt when seq is non-nil)
// from baseURL and parses the sequence number and timestamp.
func FetchState(ctx context.Context, client *http.Client, baseURL string, seq *int) (ReplicationState, error) {
	start := time.Now()
	defer func() { observability.ObserveUpstreamLatency("replication_state", time.Since(start).Seconds()) }()

	var target string
	if seq == nil {
		target = strings.TrimRight(baseURL, "/") + "/state.txt"
	} else {
		target = strings.TrimRight(baseURL, "/") + "/" + formatSequenceNumber(*seq) + ".state.txt"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return ReplicationState{}, fmt.Errorf("build state request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return ReplicationState{}, fmt.Errorf("%w: fetch state: %w", apperr.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return ReplicationState{}, fmt.Errorf("%w: state status %d", apperr.ErrUpstreamUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ReplicationState{}, fmt.Errorf("%w: read state: %w", apperr.ErrUpstreamUnavailable, err)
	}
	text := strings.ReplaceAll(string(body), `\:`, ":")

	numMatch := sequenceNumberPattern.FindStringSubmatch(text)
	tsMatch := timestampPattern.FindStringSubmatch(text)
	if numMatch == nil || tsMatch == nil {
		return ReplicationState{}, fmt.Errorf("%w: state.txt missing sequenceNumber/timestamp", apperr.ErrMalformedDiff)
	}

	number, err := strconv.Atoi(numMatch[1])
	if err != nil {
		return ReplicationState{}, fmt.Errorf("%w: parse sequenceNumber: %w", apperr.ErrMalformedDiff, err)
	}
	ts, err := time.Parse("2006-01-02T15:04:05Z", tsMatch[1])
	if err != nil {
		return ReplicationState{}, fmt.Errorf("%w: parse state timestamp: %w", apperr.ErrMalformedDiff, err)
	}

	return ReplicationState{Number: number, Timestamp: float64(ts.Unix())}, nil
}

// FetchDiffGzip fetches and gzip-decompresses the NNN.osc.gz document
// for seq, returning raw osmChange XML bytes.
func FetchDiffGzip(ctx context.Context, client *http.Client, baseURL string, seq int) ([]byte, error) {
	start := time.Now()
	defer func() { observability.ObserveUpstreamLatency("replication_diff", time.Since(start).Seconds()) }()

	target := strings.TrimRight(baseURL, "/") + "/" + formatSequenceNumber(seq) + ".osc.gz"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build diff request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch diff: %w", apperr.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("%w: diff status %d", apperr.ErrUpstreamUnavailable, resp.StatusCode)
	}

	return decompressGzip(resp.Body)
}

// sequenceDiff pairs a sequence number with its decompressed XML, used
// to restore ascending order after a parallel fetch.
type sequenceDiff struct {
	number int
	xml    []byte
}

// FetchDiffs walks backward from the current replication head,
// collecting every sequence newer than lastUpdate, then fetches each
// in parallel and returns them ordered oldest-first along with the
// newest timestamp observed. Returns (nil, lastUpdate, nil) when
// nothing is newer.
func FetchDiffs(ctx context.Context, client *http.Client, baseURL string, lastUpdate float64) ([][]byte, float64, error) {
	var numbers []int
	var timestamps []float64

	for {
		var next *int
		if len(numbers) > 0 {
			n := numbers[len(numbers)-1] - 1
			next = &n
		}
		st, err := FetchState(ctx, client, baseURL, next)
		if err != nil {
			return nil, 0, err
		}
		if st.Timestamp <= lastUpdate {
			break
		}
		numbers = append(numbers, st.Number)
		timestamps = append(timestamps, st.Timestamp)
	}

	if len(numbers) == 0 {
		return nil, lastUpdate, nil
	}

	results := make([]sequenceDiff, len(numbers))
	errs := make([]error, len(numbers))
	var wg sync.WaitGroup
	for i, n := range numbers {
		wg.Add(1)
		go func(i, n int) {
			defer wg.Done()
			xml, err := FetchDiffGzip(ctx, client, baseURL, n)
			results[i] = sequenceDiff{number: n, xml: xml}
			errs[i] = err
		}(i, n)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, 0, err
		}
	}

	sort.Slice(results, func(i, j int) bool { return results[i].number < results[j].number })

	docs := make([][]byte, len(results))
	for i, r := range results {
		docs[i] = r.xml
	}
	return docs, timestamps[0], nil
}
