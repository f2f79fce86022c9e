package service

import (
	"context"
	"strings"

	dsmodel "practicelab/internal/dataset/model"
	"practicelab/internal/dataset/normalize"
	"practicelab/internal/dataset/script"
	"practicelab/internal/practice/fetcher"
	"practicelab/internal/practice/model"
	"practicelab/pkg/utils/logger"

	"go.uber.org/zap"
)

// resolveRecords normalizes the question's inline descriptors, then its
// context, and finally the fetched descriptor when nothing inline can be
// previewed or loaded. Fetch failures are logged and leave the inline result.
func resolveRecords(ctx context.Context, q *model.Question, f fetcher.Fetcher) []*dsmodel.DatasetRecord {
	var records []*dsmodel.DatasetRecord
	for _, d := range q.Descriptors {
		records = append(records, normalize.NormalizeAll(d)...)
	}
	if !anyUsable(records) && q.Context != nil {
		records = append(records, normalize.NormalizeAll(q.Context)...)
	}
	records = dedupe(records)
	if anyUsable(records) || f == nil {
		return records
	}

	payload, err := f.Fetch(ctx, q.ID)
	if err != nil {
		logger.Warn(ctx, "fetch dataset failed", zap.String("question_id", q.ID), zap.Error(err))
		return records
	}
	fetched := dedupe(normalize.NormalizeAll(payload))
	if !anyUsable(fetched) {
		logger.Debug(ctx, "fetched dataset not usable", zap.String("question_id", q.ID))
		return records
	}
	return fetched
}

func anyUsable(records []*dsmodel.DatasetRecord) bool {
	for _, r := range records {
		if r.Usable() {
			return true
		}
	}
	return false
}

// dedupe collapses records describing the same dataset: equal dataset keys or
// overlapping table sets. The first usable record of a group wins and missing
// display fields are filled from the others.
func dedupe(records []*dsmodel.DatasetRecord) []*dsmodel.DatasetRecord {
	out := make([]*dsmodel.DatasetRecord, 0, len(records))
	tables := make([]map[string]struct{}, 0, len(records))
next:
	for _, r := range records {
		if r == nil {
			continue
		}
		set := tableSet(r)
		for i, kept := range out {
			if kept.ID != r.ID && !overlaps(tables[i], set) {
				continue
			}
			if !kept.Usable() && r.Usable() {
				fillDisplay(r, kept)
				out[i] = r
			} else {
				fillDisplay(kept, r)
			}
			for name := range set {
				tables[i][name] = struct{}{}
			}
			continue next
		}
		out = append(out, r)
		tables = append(tables, set)
	}
	return out
}

// tableSet returns the lowercased tables a record declares or its setup
// script creates.
func tableSet(r *dsmodel.DatasetRecord) map[string]struct{} {
	set := make(map[string]struct{})
	for _, name := range r.DeclaredTables() {
		set[strings.ToLower(name)] = struct{}{}
	}
	if r.SQLScript != "" {
		for _, name := range script.ExtractTableNames(r.SQLScript) {
			set[strings.ToLower(name)] = struct{}{}
		}
	}
	return set
}

func overlaps(a, b map[string]struct{}) bool {
	for name := range b {
		if _, ok := a[name]; ok {
			return true
		}
	}
	return false
}

func fillDisplay(dst, src *dsmodel.DatasetRecord) {
	if dst.Name == "" {
		dst.Name = src.Name
	}
	if dst.Description == "" {
		dst.Description = src.Description
	}
	if dst.Subject == "" {
		dst.Subject = src.Subject
	}
	if dst.TableName == "" && len(dst.TableNames) == 0 {
		dst.TableName = src.TableName
		dst.TableNames = src.TableNames
	}
}
