package model

import "time"

type Task struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Title     string    `json:"title" gorm:"size:100;not null"`
	Done      bool      `json:"done" gorm:"not null;default:false"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime:false"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime:false"`
}

// TaskCreate is the body of POST /tasks. Done defaults to false when omitted.
type TaskCreate struct {
	Title string `json:"title" validate:"required,min=1,max=100"`
	Done  *bool  `json:"done"`
}

// TaskUpdate is the body of PUT /tasks/{id}. Both fields are required.
type TaskUpdate struct {
	Title string `json:"title" validate:"required,min=1,max=100"`
	Done  *bool  `json:"done" validate:"required"`
}

// TaskPatch is the body of PATCH /tasks/{id}. A nil field was not provided.
type TaskPatch struct {
	Title *string `json:"title" validate:"omitnil,min=1,max=100"`
	Done  *bool   `json:"done"`
}

// Empty reports whether no field was provided at all.
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Done == nil
}

func (in TaskCreate) ToTask(now time.Time) Task {
	t := Task{
		Title:     in.Title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if in.Done != nil {
		t.Done = *in.Done
	}
	return t
}

// Apply replaces the mutable fields of cur.
func (in TaskUpdate) Apply(cur Task, now time.Time) Task {
	cur.Title = in.Title
	if in.Done != nil {
		cur.Done = *in.Done
	}
	cur.UpdatedAt = now
	return cur
}

// Apply sets only the provided fields on cur.
func (p TaskPatch) Apply(cur Task, now time.Time) Task {
	if p.Title != nil {
		cur.Title = *p.Title
	}
	if p.Done != nil {
		cur.Done = *p.Done
	}
	cur.UpdatedAt = now
	return cur
}

type Stats struct {
	Total int `json:"total"`
	Done  int `json:"done"`
	Open  int `json:"open"`
}
