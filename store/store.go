// Package store implements the hive-partitioned Parquet layout every
// dataset in this engine is built on: one directory per trading date
// (date=YYYY-MM-DD), one or more *.parquet files inside it, and an adjacent
// validated_partitions.json cache recording which dates have already passed
// validation.
package store

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
	"go.uber.org/zap"

	"mnemosyne/types"
)

const defaultParquetGlob = "*.parquet"

// PartitionStore reads and writes one row type T against a hive-partitioned
// root directory. T must be a plain struct with `parquet:"..."` tags; the
// store never inspects T beyond handing it to parquet-go's generic reader
// and writer.
type PartitionStore[T any] struct {
	Root        string
	ParquetGlob string
	Logger      *zap.SugaredLogger

	dateOf func(T) types.Date
	less   func(a, b T) bool
}

// Option configures a PartitionStore at construction time.
type Option[T any] func(*PartitionStore[T])

func WithParquetGlob[T any](glob string) Option[T] {
	return func(s *PartitionStore[T]) { s.ParquetGlob = glob }
}

func WithLogger[T any](l *zap.SugaredLogger) Option[T] {
	return func(s *PartitionStore[T]) { s.Logger = l }
}

// New builds a PartitionStore rooted at root. dateOf extracts the partition
// date from a row; less defines the within-partition sort order written to
// disk (e.g. by symbol then tick time).
func New[T any](root string, dateOf func(T) types.Date, less func(a, b T) bool, opts ...Option[T]) *PartitionStore[T] {
	s := &PartitionStore[T]{
		Root:        root,
		ParquetGlob: defaultParquetGlob,
		Logger:      zap.NewNop().Sugar(),
		dateOf:      dateOf,
		less:        less,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PartitionPath returns the directory holding d's partition files.
func (s *PartitionStore[T]) PartitionPath(d types.Date) string {
	return filepath.Join(s.Root, fmt.Sprintf("date=%s", d.String()))
}

// ReadPartition reads and concatenates every Parquet file under d's
// partition directory, sorted by the store's configured order. A missing
// partition directory returns an empty, non-error result: absence of a
// partition is distinguished from an invalid one at the dataset layer, not
// here.
func (s *PartitionStore[T]) ReadPartition(d types.Date) ([]T, error) {
	dir := s.PartitionPath(d)
	matches, err := filepath.Glob(filepath.Join(dir, s.ParquetGlob))
	if err != nil {
		return nil, &types.ReadError{Path: dir, Cause: err}
	}
	if len(matches) == 0 {
		return nil, nil
	}
	sort.Strings(matches)

	var rows []T
	for _, path := range matches {
		fileRows, err := readParquetFile[T](path)
		if err != nil {
			return nil, &types.ReadError{Path: path, Cause: err}
		}
		rows = append(rows, fileRows...)
	}
	sort.Slice(rows, func(i, j int) bool { return s.less(rows[i], rows[j]) })
	return rows, nil
}

func readParquetFile[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	reader := parquet.NewGenericReader[T](f, parquet.File(f.Name(), stat.Size()))
	defer reader.Close()

	var rows []T
	buf := make([]T, 4096)
	for {
		n, err := reader.Read(buf)
		rows = append(rows, buf[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	return rows, nil
}

// WritePartitionBatch fans rows out by their partition date and writes each
// date's rows as a single new Parquet file, sorted by the store's configured
// order. It never deletes or merges existing files for a date — callers that
// want replace-on-recompute semantics do so one layer up in the dataset's
// Compute, which removes each batch date's partition directory before
// writing fresh partitions.
func (s *PartitionStore[T]) WritePartitionBatch(rows []T) error {
	byDate := make(map[types.Date][]T)
	for _, r := range rows {
		d := s.dateOf(r)
		byDate[d] = append(byDate[d], r)
	}

	for d, dateRows := range byDate {
		sort.Slice(dateRows, func(i, j int) bool { return s.less(dateRows[i], dateRows[j]) })
		if err := s.writeOnePartition(d, dateRows); err != nil {
			return err
		}
	}
	return nil
}

func (s *PartitionStore[T]) writeOnePartition(d types.Date, rows []T) error {
	dir := s.PartitionPath(d)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	id := uuid.New().String()
	finalPath := filepath.Join(dir, fmt.Sprintf("part-%s.parquet", id))
	tmpPath := finalPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmpPath, err)
	}

	writer := parquet.NewGenericWriter[T](f, parquet.Compression(&zstd.Codec{}))
	if _, err := writer.Write(rows); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", tmpPath, err)
	}
	if err := writer.Close(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("close writer %s: %w", tmpPath, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename %s -> %s: %w", tmpPath, finalPath, err)
	}

	s.Logger.Infow("wrote partition", "date", d.String(), "rows", len(rows), "path", finalPath)
	return nil
}
