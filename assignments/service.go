// Package assignments records coursework submissions: the submitted file is
// stored through the upload gateway and a submission record points at it.
package assignments

import (
	"context"
	"strconv"

	"campus-store/collections"
	"campus-store/core"
	"campus-store/stores/mirror"
	"campus-store/uploads"

	"github.com/sirupsen/logrus"
)

const (
	Collection      = "assignment-submissions"
	Category        = "assignments"
	StatusSubmitted = "submitted"

	badgePrefix = "submitted:"
)

type Submission struct {
	CourseTitle string
	Kind        uploads.Kind
	Content     []byte
	FileName    string
	ContentType string
}

type Service struct {
	repo    *collections.Repository
	gateway *uploads.Gateway
	badges  *mirror.Cache
}

// NewService builds the service. badges keeps the per-course "submitted"
// marker local to this process.
func NewService(repo *collections.Repository, gateway *uploads.Gateway, badges *mirror.Cache) *Service {
	return &Service{repo: repo, gateway: gateway, badges: badges}
}

func (s *Service) Submit(ctx context.Context, sub Submission) (core.Record, error) {
	if sub.CourseTitle == "" {
		return core.Record{}, core.Validation("course title is required")
	}
	if sub.Kind != uploads.KindText && sub.Kind != uploads.KindBinary {
		return core.Record{}, core.Validation("unknown upload type %q", sub.Kind)
	}

	receipt, err := s.gateway.Submit(ctx, uploads.Payload{
		Kind:          sub.Kind,
		Content:       sub.Content,
		SuggestedName: sub.FileName,
		Category:      Category,
		ContentType:   sub.ContentType,
	})
	if err != nil {
		return core.Record{}, err
	}

	record, err := s.repo.Create(ctx, Collection, map[string]any{
		"courseTitle": sub.CourseTitle,
		"uploadType":  string(sub.Kind),
		"fileName":    receipt.OriginalName,
		"fileUrl":     receipt.URL,
		"blobName":    receipt.Key,
		"status":      StatusSubmitted,
	})
	if err != nil {
		return core.Record{}, err
	}

	stamp := strconv.FormatInt(record.CreatedAt.UnixMilli(), 10)
	if err := s.badges.Set(badgePrefix+sub.CourseTitle, []byte(stamp)); err != nil {
		logrus.WithFields(logrus.Fields{"course": sub.CourseTitle, "error": err}).Warn("Failed to set submission badge")
	}
	logrus.WithFields(logrus.Fields{
		"course": sub.CourseTitle,
		"id":     record.ID,
		"key":    receipt.Key,
	}).Info("Assignment submitted")
	return record, nil
}

// ForCourse lists the submissions of one course.
func (s *Service) ForCourse(ctx context.Context, courseTitle string) ([]core.Record, error) {
	if courseTitle == "" {
		return nil, core.Validation("course title is required")
	}
	return s.repo.ListWhere(ctx, Collection, map[string]string{"courseTitle": courseTitle})
}

// Submitted reports whether this process has seen a submission for the
// course. It never consults the store.
func (s *Service) Submitted(courseTitle string) bool {
	_, ok := s.badges.Lookup(badgePrefix + courseTitle)
	return ok
}
