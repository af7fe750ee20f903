package sanitypress

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrCommentNotFound is returned when a comment id does not exist.
var ErrCommentNotFound = errors.New("comment not found")

// createdAtLayout is fixed-width so that created_at sorts lexically.
const createdAtLayout = "2006-01-02T15:04:05.000000000Z"

// CommentStore wraps a SQLite database holding reader comments.
type CommentStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewCommentStore opens (or creates) the SQLite database at path, ensures the
// data directory exists, and creates the schema.
func NewCommentStore(path string) (*CommentStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL lets readers proceed while a comment is written; the busy timeout
	// makes writers wait instead of failing with SQLITE_BUSY.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
		PRAGMA foreign_keys=ON;
	`); err != nil {
		db.Close()
		return nil, err
	}
	if path == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(4)
	}
	s := &CommentStore{db: db, now: time.Now}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *CommentStore) Close() error {
	return s.db.Close()
}

func (s *CommentStore) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS comments (
    id TEXT PRIMARY KEY,
    post_id TEXT NOT NULL,
    parent_id TEXT NOT NULL DEFAULT '',
    author TEXT NOT NULL,
    content TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending',
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_comments_post ON comments (post_id, status, created_at);
CREATE INDEX IF NOT EXISTS idx_comments_status ON comments (status, created_at);
`)
	return err
}

// AddComment stores c with a fresh id and creation time. An empty status
// becomes pending.
func (s *CommentStore) AddComment(c Comment) (Comment, error) {
	c.ID = uuid.NewString()
	c.CreatedAt = s.now().UTC()
	if c.Status == "" {
		c.Status = CommentPending
	}
	_, err := s.db.Exec(`INSERT INTO comments (id, post_id, parent_id, author, content, status, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.PostID, c.ParentID, c.Author, c.Content, string(c.Status), c.CreatedAt.Format(createdAtLayout))
	if err != nil {
		return Comment{}, fmt.Errorf("insert comment: %w", err)
	}
	return c, nil
}

// GetComment returns a comment by id regardless of status.
func (s *CommentStore) GetComment(id string) (Comment, error) {
	row := s.db.QueryRow(`SELECT id, post_id, parent_id, author, content, status, created_at FROM comments WHERE id = ?`, id)
	c, err := scanComment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Comment{}, ErrCommentNotFound
	}
	return c, err
}

// CountApproved returns the number of approved comments on a post.
func (s *CommentStore) CountApproved(postID string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM comments WHERE post_id = ? AND status = ?`, postID, string(CommentApproved)).Scan(&n)
	return n, err
}

// ListApproved returns one page of approved comments on a post, newest first,
// and the total number of approved comments.
func (s *CommentStore) ListApproved(postID string, limit, offset int) ([]Comment, int, error) {
	total, err := s.CountApproved(postID)
	if err != nil {
		return nil, 0, err
	}
	rows, err := s.db.Query(`SELECT id, post_id, parent_id, author, content, status, created_at FROM comments WHERE post_id = ? AND status = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		postID, string(CommentApproved), limit, offset)
	if err != nil {
		return nil, 0, err
	}
	comments, err := scanComments(rows)
	return comments, total, err
}

// ListForModeration returns pending and rejected comments, newest first.
func (s *CommentStore) ListForModeration() ([]Comment, error) {
	rows, err := s.db.Query(`SELECT id, post_id, parent_id, author, content, status, created_at FROM comments WHERE status IN (?, ?) ORDER BY created_at DESC`,
		string(CommentPending), string(CommentRejected))
	if err != nil {
		return nil, err
	}
	return scanComments(rows)
}

// CountPending returns the number of comments awaiting moderation.
func (s *CommentStore) CountPending() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM comments WHERE status = ?`, string(CommentPending)).Scan(&n)
	return n, err
}

// SetStatus changes the moderation state of a comment.
func (s *CommentStore) SetStatus(id string, status CommentStatus) error {
	switch status {
	case CommentPending, CommentApproved, CommentRejected:
	default:
		return fmt.Errorf("invalid comment status %q", status)
	}
	res, err := s.db.Exec(`UPDATE comments SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// DeleteComment removes a comment and its direct replies. Either both go or
// neither does.
func (s *CommentStore) DeleteComment(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM comments WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM comments WHERE parent_id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrCommentNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanComment(row rowScanner) (Comment, error) {
	var c Comment
	var status, createdAt string
	if err := row.Scan(&c.ID, &c.PostID, &c.ParentID, &c.Author, &c.Content, &status, &createdAt); err != nil {
		return Comment{}, err
	}
	c.Status = CommentStatus(status)
	t, err := time.Parse(createdAtLayout, createdAt)
	if err != nil {
		return Comment{}, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	c.CreatedAt = t
	return c, nil
}

func scanComments(rows *sql.Rows) ([]Comment, error) {
	defer rows.Close()
	var out []Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// NormalizeCommentText trims surrounding whitespace and collapses runs of
// blank lines to one.
func NormalizeCommentText(s string) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), "\r\n", "\n")
	for strings.Contains(s, "\n\n\n") {
		s = strings.ReplaceAll(s, "\n\n\n", "\n\n")
	}
	return s
}
