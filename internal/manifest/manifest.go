// Package manifest 在 bbolt 文件中持久化每次构建的划分结果，并报告与上次构建的漂移。
package manifest

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"sftcorpus/pkg/contract"
)

var (
	runsBucket        = []byte("runs")
	assignmentsBucket = []byte("assignments")
)

// Run 单次构建的摘要。
type Run struct {
	ID        string    `json:"id"`
	Seed      int64     `json:"seed"`
	ValRatio  float64   `json:"val_ratio"`
	TestRatio float64   `json:"test_ratio"`
	Train     int       `json:"train"`
	Val       int       `json:"val"`
	Test      int       `json:"test"`
	CreatedAt time.Time `json:"created_at"`
}

// Assignments: content_hash → 分区。
type Assignments map[string]contract.Partition

// Store 封装 manifest 数据库；nil *Store 的所有方法为空操作。
type Store struct {
	db       *bolt.DB
	readOnly bool
}

// Open 以读写方式打开（不存在则创建）manifest。
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("manifest dir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open manifest %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(runsBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(assignmentsBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// OpenReadOnly 以只读方式打开已有 manifest；文件不存在时返回 (nil, nil)。
func OpenReadOnly(path string) (*Store, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("open manifest %s: %w", path, err)
	}
	return &Store{db: db, readOnly: true}, nil
}

// Close 关闭数据库。
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Previous 返回最近一次保存的构建及其划分；尚无记录时 run 为 nil。
func (s *Store) Previous() (*Run, Assignments, error) {
	if s == nil {
		return nil, nil, nil
	}
	var run *Run
	assign := Assignments{}
	err := s.db.View(func(tx *bolt.Tx) error {
		rb := tx.Bucket(runsBucket)
		if rb == nil {
			return nil
		}
		k, v := rb.Cursor().Last()
		if k == nil {
			return nil
		}
		var r Run
		if err := json.Unmarshal(v, &r); err != nil {
			return fmt.Errorf("decode run: %w", err)
		}
		run = &r
		if ab := tx.Bucket(assignmentsBucket); ab != nil {
			return ab.ForEach(func(k, v []byte) error {
				assign[string(k)] = contract.Partition(v)
				return nil
			})
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return run, assign, nil
}

// Save 追加一次构建记录，并以 assign 整体替换当前划分。
func (s *Store) Save(run Run, assign Assignments) error {
	if s == nil {
		return nil
	}
	if s.readOnly {
		return fmt.Errorf("%w: manifest opened read-only", contract.ErrInvariantViolation)
	}
	payload, err := json.Marshal(run)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		rb := tx.Bucket(runsBucket)
		seq, err := rb.NextSequence()
		if err != nil {
			return err
		}
		var key [8]byte
		binary.BigEndian.PutUint64(key[:], seq)
		if err := rb.Put(key[:], payload); err != nil {
			return err
		}
		if err := tx.DeleteBucket(assignmentsBucket); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return err
		}
		ab, err := tx.CreateBucket(assignmentsBucket)
		if err != nil {
			return err
		}
		for h, p := range assign {
			if err := ab.Put([]byte(h), []byte(p)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Runs 返回全部构建记录（按保存顺序）。
func (s *Store) Runs() ([]Run, error) {
	if s == nil {
		return nil, nil
	}
	var out []Run
	err := s.db.View(func(tx *bolt.Tx) error {
		rb := tx.Bucket(runsBucket)
		if rb == nil {
			return nil
		}
		return rb.ForEach(func(_, v []byte) error {
			var r Run
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			out = append(out, r)
			return nil
		})
	})
	return out, err
}
