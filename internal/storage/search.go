package storage

import (
	"container/heap"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"time"
)

// SearchSimilar performs brute-force cosine similarity search over the given
// user's entry embeddings, returning the top-K most similar entries. Entries
// stored without an embedding are skipped. Result embeddings are not loaded.
func (s *Store) SearchSimilar(userID string, vector []float32, topK int) ([]ScoredEntry, error) {
	if topK <= 0 || len(vector) == 0 {
		return nil, nil
	}

	queryNorm := norm(vector)
	if queryNorm == 0 {
		return nil, nil
	}

	// Phase 1: scan only id + embedding to find top-K candidates.
	rows, err := s.db.Query(
		"SELECT id, embedding FROM entries WHERE user_id = ? AND embedding IS NOT NULL", userID)
	if err != nil {
		return nil, fmt.Errorf("querying embeddings: %w", err)
	}
	defer rows.Close()

	h := &entryScoreHeap{}
	heap.Init(h)

	// Reusable buffer for decoding embeddings to avoid per-row allocations.
	var buf []float32

	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		buf, err = decodeFloat32sInto(buf, blob)
		if err != nil {
			return nil, fmt.Errorf("decoding embedding for %s: %w", id, err)
		}

		score := cosine(vector, buf, queryNorm)
		if h.Len() < topK {
			heap.Push(h, entryScore{ID: id, Score: score})
		} else if score > (*h)[0].Score {
			(*h)[0] = entryScore{ID: id, Score: score}
			heap.Fix(h, 0)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	if h.Len() == 0 {
		return nil, nil
	}

	// Phase 2: fetch full entries only for the winners.
	topIDs := make([]string, h.Len())
	scores := make(map[string]float32, h.Len())
	for i := len(topIDs) - 1; i >= 0; i-- {
		item := heap.Pop(h).(entryScore)
		topIDs[i] = item.ID
		scores[item.ID] = item.Score
	}

	args := make([]any, len(topIDs))
	for i, id := range topIDs {
		args[i] = id
	}
	fullQuery := `SELECT id, user_id, content, intent, category, created_at
		FROM entries WHERE id IN (?` + strings.Repeat(",?", len(topIDs)-1) + `)`

	fullRows, err := s.db.Query(fullQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("fetching top-K entries: %w", err)
	}
	defer fullRows.Close()

	var results []ScoredEntry
	for fullRows.Next() {
		var e Entry
		var createdAt string
		if err := fullRows.Scan(&e.ID, &e.UserID, &e.Content, &e.Intent, &e.Category, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		e.CreatedAt = t
		results = append(results, ScoredEntry{Entry: e, Score: scores[e.ID]})
	}
	if err := fullRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entries: %w", err)
	}

	// Sort by score descending (IN query doesn't preserve order).
	sortByScore(results)
	return results, nil
}

// sortByScore sorts ScoredEntries by Score descending. Used for small slices (topK).
func sortByScore(results []ScoredEntry) {
	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && results[j].Score > results[j-1].Score; j-- {
			results[j], results[j-1] = results[j-1], results[j]
		}
	}
}

// encodeFloat32s serializes a float32 slice to little-endian bytes.
func encodeFloat32s(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeFloat32s deserializes little-endian bytes into a new float32 slice.
func decodeFloat32s(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("byte slice length %d is not a multiple of 4", len(b))
	}
	n := len(b) / 4
	v := make([]float32, n)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

// decodeFloat32sInto decodes little-endian bytes into the provided buffer,
// reusing it to avoid per-row allocations during search scans.
func decodeFloat32sInto(buf []float32, b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("byte slice length %d is not a multiple of 4", len(b))
	}
	n := len(b) / 4
	if cap(buf) < n {
		buf = make([]float32, n)
	} else {
		buf = buf[:n]
	}
	for i := range buf {
		buf[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return buf, nil
}

// norm returns the L2 norm of a vector.
func norm(v []float32) float32 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return float32(math.Sqrt(sum))
}

// cosine computes cosine similarity as dot(a,b) / (aNorm * bNorm).
// aNorm is the precomputed L2 norm of vector a.
func cosine(a, b []float32, aNorm float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot float64
	var bNormSq float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		bNormSq += float64(b[i]) * float64(b[i])
	}
	bNorm := math.Sqrt(bNormSq)
	if bNorm == 0 {
		return 0
	}
	return float32(dot / (float64(aNorm) * bNorm))
}

// entryScore holds only the ID and score during the scan phase of SearchSimilar.
type entryScore struct {
	ID    string
	Score float32
}

// entryScoreHeap is a min-heap of entryScore ordered by Score.
type entryScoreHeap []entryScore

func (h entryScoreHeap) Len() int           { return len(h) }
func (h entryScoreHeap) Less(i, j int) bool { return h[i].Score < h[j].Score }
func (h entryScoreHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *entryScoreHeap) Push(x any)        { *h = append(*h, x.(entryScore)) }
func (h *entryScoreHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
