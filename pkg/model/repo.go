package model

import (
	"fmt"
	"time"
	"unicode"
)

// DefaultCreator is the creator recorded on system folders
const DefaultCreator = "DMF system"

// Contributor who created the object
type Contributor struct {
	Name  string `json:"name" yaml:"name"`
	Email string `json:"email" yaml:"email"`
	_     struct{}
}

// NewContributor builds the commit identity of a local user
func NewContributor(user string) Contributor {
	return Contributor{
		Name:  user,
		Email: user + "@dmf.repo",
	}
}

func (c *Contributor) String() string {
	if c.Email == "" {
		return c.Name
	}
	if c.Name == "" {
		return c.Email
	}
	return fmt.Sprintf("%s <%s>", c.Name, c.Email)
}

// RepoDescriptor describes a local repository
type RepoDescriptor struct {
	Name        string      `json:"name,omitempty" yaml:"name,omitempty"`
	User        string      `json:"user" yaml:"user"`
	Timestamp   time.Time   `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	Contributor Contributor `json:"contributor,omitempty" yaml:"contributor,omitempty"`
	Version     uint64      `json:"version" yaml:"version"`
}

// ValidateUser checks that a user name may be used as a namespace folder
func ValidateUser(user string) error {
	if user == "" {
		return fmt.Errorf("empty field: user name is empty")
	}
	for i, c := range user {
		if !unicode.IsDigit(c) && !unicode.IsLetter(c) && !unicode.Is(unicode.Hyphen, c) && c != '_' && c != '.' {
			return fmt.Errorf("invalid name: user name:%s contains unsupported character \"%s\"",
				user,
				string([]rune(user)[i]))
		}
	}
	if user == "." || user == ".." || user == MetaDir {
		return fmt.Errorf("invalid name: user name:%s is reserved", user)
	}
	return nil
}
