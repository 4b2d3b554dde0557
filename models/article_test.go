package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestArticleCanModify(t *testing.T) {
	article := &Article{ID: 7, AuthorID: 3}

	tests := []struct {
		name string
		user *User
		want bool
	}{
		{"author", &User{ID: 3}, true},
		{"staff", &User{ID: 9, Staff: true}, true},
		{"superuser", &User{ID: 9, Superuser: true}, true},
		{"unrelated user", &User{ID: 9}, false},
		{"anonymous", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, article.CanModify(tt.user))
		})
	}
}
