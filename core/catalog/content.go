package catalog

import (
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

type CourseType string

const (
	CourseVideo   CourseType = "VIDEO"
	CourseArticle CourseType = "ARTICLE"
	CoursePDF     CourseType = "PDF"
)

var CourseTypes = []CourseType{CourseVideo, CourseArticle, CoursePDF}

func (t CourseType) IsValid() bool {
	for _, ct := range CourseTypes {
		if t == ct {
			return true
		}
	}
	return false
}

var errUnknownCourseType = errors.New("unknown course type")

// Content is the body of a course: a video, an article or a PDF document.
type Content interface {
	Type() CourseType
	// Raw is the stored form: a URL for videos & PDFs, the text for articles.
	Raw() string
}

type VideoContent struct {
	URL string
}

func (c VideoContent) Type() CourseType { return CourseVideo }
func (c VideoContent) Raw() string      { return c.URL }

// YouTubeID extracts the video id from the usual YouTube URL shapes. It is empty for other hosts.
func (c VideoContent) YouTubeID() string {
	u, err := url.Parse(strings.TrimSpace(c.URL))
	if err != nil {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	host = strings.TrimPrefix(host, "m.")
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")

	var id string
	switch host {
	case "youtu.be":
		id = segments[0]
	case "youtube.com", "youtube-nocookie.com":
		switch {
		case len(segments) >= 2 && (segments[0] == "embed" || segments[0] == "v" || segments[0] == "shorts"):
			id = segments[1]
		case segments[0] == "watch":
			id = u.Query().Get("v")
		}
	}
	if len(id) != 11 {
		return ""
	}
	return id
}

type ArticleContent struct {
	Body string
}

func (c ArticleContent) Type() CourseType { return CourseArticle }
func (c ArticleContent) Raw() string      { return c.Body }

type PDFContent struct {
	URL string
}

func (c PDFContent) Type() CourseType { return CoursePDF }
func (c PDFContent) Raw() string      { return c.URL }

// NewContent builds the Content variant matching t.
func NewContent(t CourseType, raw string) (Content, error) {
	switch t {
	case CourseVideo:
		return VideoContent{URL: raw}, nil
	case CourseArticle:
		return ArticleContent{Body: raw}, nil
	case CoursePDF:
		return PDFContent{URL: raw}, nil
	}
	return nil, errors.Wrap(errUnknownCourseType, string(t))
}
