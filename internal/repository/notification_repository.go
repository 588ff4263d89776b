package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/librov/internal/model"
	"github.com/iliyamo/librov/internal/repository/repoerr"
)

// NotificationRepo reads and writes notifications.
type NotificationRepo struct{ db *sql.DB }

func NewNotificationRepo(db *sql.DB) *NotificationRepo { return &NotificationRepo{db: db} }

// Create inserts n and fills its ID and recipient username.
func (r *NotificationRepo) Create(ctx context.Context, n *model.Notification) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO notifications (recipient_id, message, is_read, created_at) VALUES (?,?,?,?)",
		n.RecipientID, n.Message, n.IsRead, n.CreatedAt)
	if err != nil {
		return repoerr.Translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	n.ID = uint64(id)
	return r.db.QueryRowContext(ctx, "SELECT username FROM users WHERE id=?", n.RecipientID).Scan(&n.Recipient)
}

// CreateBulk inserts batch in a single multi-row statement and returns
// the number of rows written.  An empty batch writes nothing.
func (r *NotificationRepo) CreateBulk(ctx context.Context, batch []model.Notification) (int64, error) {
	if len(batch) == 0 {
		return 0, nil
	}
	var q strings.Builder
	q.WriteString("INSERT INTO notifications (recipient_id, message, is_read, created_at) VALUES ")
	args := make([]interface{}, 0, len(batch)*4)
	for i, n := range batch {
		if i > 0 {
			q.WriteByte(',')
		}
		q.WriteString("(?, ?, ?, ?)")
		args = append(args, n.RecipientID, n.Message, n.IsRead, n.CreatedAt)
	}
	res, err := r.db.ExecContext(ctx, q.String(), args...)
	if err != nil {
		return 0, repoerr.Translate(err)
	}
	return res.RowsAffected()
}

// ListForRecipient returns a user's notifications, newest first.
func (r *NotificationRepo) ListForRecipient(ctx context.Context, recipientID uint64) ([]model.Notification, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT n.id, n.recipient_id, u.username, n.message, n.is_read, n.created_at
		 FROM notifications n
		 JOIN users u ON u.id = n.recipient_id
		 WHERE n.recipient_id=?
		 ORDER BY n.created_at DESC, n.id DESC`, recipientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Notification{}
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.Recipient, &n.Message, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
