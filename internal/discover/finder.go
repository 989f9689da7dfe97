package discover

import (
	"context"
	"strings"

	"go.uber.org/multierr"
)

const (
	SourceProfile = "profile"
	SourceBio     = "bio"
	SourceCommit  = "commit"
	SourceReadme  = "readme"
)

// Discovery is at most one address plus the heuristic that found it.
type Discovery struct {
	Email  string `json:"email"`
	Source string `json:"source"`
}

func (d Discovery) Found() bool { return d.Email != "" }

// Source is the account/repository data the finder reads.
type Source interface {
	User(ctx context.Context, login string) (Profile, error)
	CommitAuthors(ctx context.Context, owner, repo string) ([]CommitAuthor, error)
	ReadmeHTML(ctx context.Context, owner, repo string) (string, error)
}

type Finder struct {
	Src Source
}

func (f *Finder) Find(ctx context.Context, owner, repo string) (Discovery, error) {
	p, err := f.Src.User(ctx, owner)
	if err != nil {
		return Discovery{}, err
	}
	return f.FindFor(ctx, p, repo)
}

// FindFor tries profile field, bio, commit author and README in that
// order. Lookup errors only surface when no heuristic produced an address.
func (f *Finder) FindFor(ctx context.Context, p Profile, repo string) (Discovery, error) {
	if Usable(p.Email) {
		return Discovery{Email: strings.ToLower(strings.TrimSpace(p.Email)), Source: SourceProfile}, nil
	}
	if found := ExtractEmails(p.Bio); len(found) > 0 {
		return Discovery{Email: found[0], Source: SourceBio}, nil
	}

	var errs error

	authors, err := f.Src.CommitAuthors(ctx, p.Login, repo)
	if err != nil {
		errs = multierr.Append(errs, err)
	}
	if addr := ownerCommitEmail(p, authors); addr != "" {
		return Discovery{Email: addr, Source: SourceCommit}, nil
	}

	html, err := f.Src.ReadmeHTML(ctx, p.Login, repo)
	if err != nil {
		errs = multierr.Append(errs, err)
	}
	if html != "" {
		if found := ExtractEmails(htmlToText(html)); len(found) > 0 {
			return Discovery{Email: found[0], Source: SourceReadme}, nil
		}
	}
	return Discovery{}, errs
}

// ownerCommitEmail only trusts commits attributed to the owner account, or
// unlinked commits carrying the owner's display name.
func ownerCommitEmail(p Profile, authors []CommitAuthor) string {
	for _, a := range authors {
		mine := strings.EqualFold(a.Login, p.Login) ||
			(a.Login == "" && p.Name != "" && strings.EqualFold(a.Name, p.Name))
		if mine && Usable(a.Email) {
			return strings.ToLower(strings.TrimSpace(a.Email))
		}
	}
	return ""
}
