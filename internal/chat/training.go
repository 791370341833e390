package chat

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// TrainingFile is reference material the owner uploads during an internal session.
type TrainingFile struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	ContentType  string    `json:"content_type"`
	Size         int       `json:"size"`
	UploadedDate string    `json:"uploaded_date"`
	Content      []byte    `json:"-"`
}

var trainingExtensions = map[string]bool{
	".txt":  true,
	".pdf":  true,
	".doc":  true,
	".docx": true,
	".json": true,
}

// Upload is one named file handed to AddTrainingFiles.
type Upload struct {
	Name string
	Data []byte
}

// AddTrainingFile stores a copy of data on the session. Internal mode only.
func (s *Session) AddTrainingFile(name string, data []byte) (TrainingFile, error) {
	files, err := s.AddTrainingFiles([]Upload{{Name: name, Data: data}})
	if err != nil {
		return TrainingFile{}, err
	}
	return files[0], nil
}

// AddTrainingFiles stores every upload or none of them. The first rejected
// upload is reported and the session is left unchanged.
func (s *Session) AddTrainingFiles(uploads []Upload) ([]TrainingFile, error) {
	for _, u := range uploads {
		if err := s.checkUpload(u); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != ModeInternal {
		return nil, ErrInternalOnly
	}

	now := s.now()
	out := make([]TrainingFile, 0, len(uploads))
	for _, u := range uploads {
		content := make([]byte, len(u.Data))
		copy(content, u.Data)
		out = append(out, TrainingFile{
			ID:           newTimeOrderedID(),
			Name:         filepath.Base(u.Name),
			ContentType:  mimetype.Detect(content).String(),
			Size:         len(content),
			UploadedDate: now.Format("1/2/2006"),
			Content:      content,
		})
	}
	s.files = append(s.files, out...)
	s.lastActive = now
	return out, nil
}

func (s *Session) checkUpload(u Upload) error {
	ext := strings.ToLower(filepath.Ext(u.Name))
	if !trainingExtensions[ext] {
		return fmt.Errorf("%w: %q", ErrUnsupportedFile, u.Name)
	}
	if s.maxUpload > 0 && len(u.Data) > s.maxUpload {
		return fmt.Errorf("%w: %q is %d bytes", ErrFileTooLarge, u.Name, len(u.Data))
	}
	return nil
}

func (s *Session) TrainingFiles() []TrainingFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TrainingFile, len(s.files))
	copy(out, s.files)
	return out
}
