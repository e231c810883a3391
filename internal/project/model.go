package project

import "time"

// Project is a registered workspace directory the panel operates on.
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
}

type ProjectInput struct {
	Name string `json:"name"`
	Path string `json:"path"`
}
