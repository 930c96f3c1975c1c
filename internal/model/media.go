package model

import (
	"slices"
	"time"
)

type ContentType string

const (
	ContentVideo   ContentType = "video"
	ContentArticle ContentType = "article"
	ContentBlog    ContentType = "blog"
	ContentImage   ContentType = "image"
	ContentEvent   ContentType = "event"
)

var contentTypes = []ContentType{ContentVideo, ContentArticle, ContentBlog, ContentImage, ContentEvent}

func (c ContentType) Valid() bool { return slices.Contains(contentTypes, c) }

// MediaContent is an educational post. Only published content is visible
// to the public.
type MediaContent struct {
	ID          int64       `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	ContentType ContentType `json:"contentType"`
	AuthorID    *int64      `json:"authorId"`
	Content     string      `json:"content"`
	Tags        []string    `json:"tags"`
	Published   bool        `json:"published"`
	CreatedAt   time.Time   `json:"createdAt"`
}

func (m MediaContent) Clone() MediaContent {
	m.AuthorID = cloneID(m.AuthorID)
	m.Tags = cloneStrings(m.Tags)
	return m
}

type MediaPatch struct {
	Title       *string
	Description *string
	ContentType *ContentType
	Content     *string
	Tags        []string
	Published   *bool
}

func (p MediaPatch) Apply(m *MediaContent) {
	if p.Title != nil {
		m.Title = *p.Title
	}
	if p.Description != nil {
		m.Description = *p.Description
	}
	if p.ContentType != nil {
		m.ContentType = *p.ContentType
	}
	if p.Content != nil {
		m.Content = *p.Content
	}
	if p.Tags != nil {
		m.Tags = cloneStrings(p.Tags)
	}
	if p.Published != nil {
		m.Published = *p.Published
	}
}

// MediaFilter narrows ListMedia. PublishedOnly hides drafts; Tag matches
// case-sensitively against any tag.
type MediaFilter struct {
	PublishedOnly bool
	ContentType   ContentType
	Tag           string
	AuthorID      int64
}

func (f MediaFilter) Match(m *MediaContent) bool {
	if f.PublishedOnly && !m.Published {
		return false
	}
	if f.ContentType != "" && m.ContentType != f.ContentType {
		return false
	}
	if f.AuthorID != 0 && (m.AuthorID == nil || *m.AuthorID != f.AuthorID) {
		return false
	}
	return f.Tag == "" || slices.Contains(m.Tags, f.Tag)
}
