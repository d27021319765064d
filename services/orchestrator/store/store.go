// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store persists execution plans, workflow records and final
// reports in an embedded BadgerDB instance.
//
// BadgerDB gives low-latency local durability without an external
// database; orchestration survives process restarts and status queries on
// historical plans stay answerable. In-memory mode backs tests.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/AleutianGovern/services/orchestrator/datatypes"
	"github.com/dgraph-io/badger/v4"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("not found")

// Key prefixes. Record keys nest under their plan so one prefix scan
// returns a plan's workflow records.
const (
	planPrefix   = "plan/"
	recordPrefix = "record/"
	reportPrefix = "report/"
)

// Config holds store settings.
type Config struct {
	// Path is the BadgerDB directory. Ignored when InMemory is true.
	Path string

	// InMemory disables disk persistence. For tests.
	InMemory bool
}

// Store wraps a Badger instance with typed accessors.
//
// # Thread Safety
//
// Safe for concurrent use; Badger transactions provide isolation.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

// badgerLogger adapts slog to Badger's logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Open creates or opens the store. A nil logger falls back to
// slog.Default().
func Open(cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts := badger.DefaultOptions(cfg.Path).
		WithInMemory(cfg.InMemory).
		WithLogger(&badgerLogger{logger: logger})
	if cfg.InMemory {
		opts.Dir = ""
		opts.ValueDir = ""
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening plan store: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) putJSON(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

func (s *Store) getJSON(key string, out any) error {
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, out)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return err
}

// PutPlan stores an execution plan.
func (s *Store) PutPlan(plan *datatypes.ExecutionPlan) error {
	return s.putJSON(planPrefix+plan.PlanID, plan)
}

// GetPlan loads a plan by ID.
func (s *Store) GetPlan(planID string) (*datatypes.ExecutionPlan, error) {
	var plan datatypes.ExecutionPlan
	if err := s.getJSON(planPrefix+planID, &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

// ListPlanIDs returns every stored plan ID.
func (s *Store) ListPlanIDs() ([]string, error) {
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := []byte(planPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			ids = append(ids, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	return ids, err
}

// PutRecord stores a workflow execution record under its plan.
func (s *Store) PutRecord(planID string, record *datatypes.WorkflowExecutionRecord) error {
	return s.putJSON(recordPrefix+planID+"/"+record.WorkflowID, record)
}

// GetRecord loads one workflow record.
func (s *Store) GetRecord(planID, workflowID string) (*datatypes.WorkflowExecutionRecord, error) {
	var record datatypes.WorkflowExecutionRecord
	if err := s.getJSON(recordPrefix+planID+"/"+workflowID, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// ListRecords returns every workflow record belonging to a plan.
func (s *Store) ListRecords(planID string) ([]*datatypes.WorkflowExecutionRecord, error) {
	var records []*datatypes.WorkflowExecutionRecord
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(recordPrefix + planID + "/")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var record datatypes.WorkflowExecutionRecord
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &record)
			})
			if err != nil {
				return err
			}
			records = append(records, &record)
		}
		return nil
	})
	return records, err
}

// PutReport stores a plan's final report.
func (s *Store) PutReport(report *datatypes.PlanReport) error {
	return s.putJSON(reportPrefix+report.PlanID, report)
}

// GetReport loads a plan's final report.
func (s *Store) GetReport(planID string) (*datatypes.PlanReport, error) {
	var report datatypes.PlanReport
	if err := s.getJSON(reportPrefix+planID, &report); err != nil {
		return nil, err
	}
	return &report, nil
}
