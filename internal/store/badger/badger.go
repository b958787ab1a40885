package badger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-dm/internal/store"
)

// Key layout, fields separated by NUL so that user ids sort as plain strings:
//
//	c/{lo}/{hi}/{created_at_ns}/{seq}         -> CBOR record (conversation history)
//	u/{recipient}/{sender}/{created_at_ns}/{seq} -> conversation key (unread index)
//	m/{id}                                      -> conversation key (id uniqueness)
const (
	sep           = "\x00"
	prefixConv    = "c" + sep
	prefixUnread  = "u" + sep
	prefixID      = "m" + sep
	sequenceKey   = "s" + sep + "messages"
	maxTxnRetries = 5

	// markReadBatch bounds how many unread entries one transaction rewrites.
	markReadBatch = 1000
)

// ErrDuplicateID is returned when a message id is already stored.
var ErrDuplicateID = errors.New("duplicate message id")

// record is the stored form of a message.
type record struct {
	ID          string `cbor:"id"`
	SenderID    string `cbor:"sender"`
	RecipientID string `cbor:"recipient"`
	Content     string `cbor:"content"`
	CreatedAt   int64  `cbor:"created_at"`
	Seq         uint64 `cbor:"seq"`
	Read        bool   `cbor:"read"`
}

func (r *record) message() *store.Message {
	return &store.Message{
		ID:          r.ID,
		SenderID:    r.SenderID,
		RecipientID: r.RecipientID,
		Content:     r.Content,
		CreatedAt:   time.Unix(0, r.CreatedAt).UTC(),
		Read:        r.Read,
	}
}

func (r *record) suffix() string {
	return fmt.Sprintf("%019d%s%020d", r.CreatedAt, sep, r.Seq)
}

func (r *record) convKey() []byte {
	return []byte(conversationPrefix(r.SenderID, r.RecipientID) + r.suffix())
}

func (r *record) unreadKey() []byte {
	return []byte(unreadPrefix(r.RecipientID, r.SenderID) + r.suffix())
}

// conversationPrefix is symmetric in its arguments.
func conversationPrefix(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return prefixConv + a + sep + b + sep
}

func unreadPrefix(recipientID, senderID string) string {
	return prefixUnread + recipientID + sep + senderID + sep
}

// BadgerStore implements store.Store on an embedded BadgerDB.
type BadgerStore struct {
	db  *badgerdb.DB
	seq *badgerdb.Sequence
}

// New opens (or creates) a badger database in dir. ":memory:" or an empty dir
// selects in-memory mode.
func New(dir string, logger *zerolog.Logger) (*BadgerStore, error) {
	var opts badgerdb.Options
	if dir == "" || dir == ":memory:" {
		opts = badgerdb.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badgerdb.DefaultOptions(dir)
	}
	opts = opts.WithLogger(newLogger(logger))

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	seq, err := db.GetSequence([]byte(sequenceKey), 128)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open sequence: %w", err)
	}

	return &BadgerStore{db: db, seq: seq}, nil
}

// Close releases the sequence lease and closes the database.
func (s *BadgerStore) Close() error {
	seqErr := s.seq.Release()
	if err := s.db.Close(); err != nil {
		return err
	}
	return seqErr
}

// update runs fn in a read-write transaction, retrying on conflicts.
func (s *BadgerStore) update(ctx context.Context, fn func(txn *badgerdb.Txn) error) error {
	var err error
	for range maxTxnRetries {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = s.db.Update(fn)
		if !errors.Is(err, badgerdb.ErrConflict) {
			return err
		}
	}
	return err
}

// InsertMessage persists a message to storage.
func (s *BadgerStore) InsertMessage(ctx context.Context, msg *store.Message) error {
	seq, err := s.seq.Next()
	if err != nil {
		return store.Unavailable("next sequence", err)
	}

	rec := &record{
		ID:          msg.ID,
		SenderID:    msg.SenderID,
		RecipientID: msg.RecipientID,
		Content:     msg.Content,
		CreatedAt:   msg.CreatedAt.UnixNano(),
		Seq:         seq,
		Read:        msg.Read,
	}
	value, err := cbor.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	err = s.update(ctx, func(txn *badgerdb.Txn) error {
		idKey := []byte(prefixID + rec.ID)
		if _, err := txn.Get(idKey); err == nil {
			return ErrDuplicateID
		} else if !errors.Is(err, badgerdb.ErrKeyNotFound) {
			return err
		}

		convKey := rec.convKey()
		if err := txn.Set(convKey, value); err != nil {
			return err
		}
		if err := txn.Set(idKey, convKey); err != nil {
			return err
		}
		if !rec.Read {
			return txn.Set(rec.unreadKey(), convKey)
		}
		return nil
	})
	if errors.Is(err, ErrDuplicateID) {
		return fmt.Errorf("insert message %s: %w", rec.ID, err)
	}
	if err != nil {
		return store.Unavailable("insert message", err)
	}
	return nil
}

// ListConversation retrieves the history between two users. With markRead,
// userB's unread messages to userA are marked read before the history is
// read back, so the result already reflects the change.
func (s *BadgerStore) ListConversation(ctx context.Context, userA, userB string, markRead bool) ([]*store.Message, error) {
	if markRead {
		if _, err := s.MarkRead(ctx, userB, userA); err != nil {
			return nil, err
		}
	}

	var messages []*store.Message
	err := s.db.View(func(txn *badgerdb.Txn) error {
		records, err := scanRecords(txn, []byte(conversationPrefix(userA, userB)))
		if err != nil {
			return err
		}
		messages = make([]*store.Message, 0, len(records))
		for _, rec := range records {
			messages = append(messages, rec.message())
		}
		return nil
	})
	if err != nil {
		return nil, store.Unavailable("list conversation", err)
	}
	return messages, nil
}

// MarkRead marks all unread messages from sender to recipient as read.
// Large backlogs are committed over several transactions.
func (s *BadgerStore) MarkRead(ctx context.Context, senderID, recipientID string) (int64, error) {
	var total int64
	for {
		updated, more, err := s.markReadBatch(ctx, senderID, recipientID)
		total += updated
		if err != nil {
			return total, store.Unavailable("mark read", err)
		}
		if !more {
			return total, nil
		}
	}
}

// markReadBatch rewrites up to markReadBatch unread entries in one
// transaction. more reports that entries may remain.
func (s *BadgerStore) markReadBatch(ctx context.Context, senderID, recipientID string) (updated int64, more bool, err error) {
	err = s.update(ctx, func(txn *badgerdb.Txn) error {
		updated, more = 0, false

		entries, err := scanEntries(txn, []byte(unreadPrefix(recipientID, senderID)), markReadBatch)
		if err != nil {
			return err
		}
		more = len(entries) == markReadBatch

		for i, e := range entries {
			rec, err := getRecord(txn, e.value)
			switch {
			case errors.Is(err, badgerdb.ErrKeyNotFound):
				// index entry without a record
				err = txn.Delete(e.key)
			case err != nil:
				return err
			case rec.Read:
				// left behind by a batch that ran out of room
				err = txn.Delete(e.key)
			default:
				var applied bool
				applied, err = markRecordRead(txn, rec)
				if applied {
					updated++
				}
			}
			if errors.Is(err, badgerdb.ErrTxnTooBig) && i > 0 {
				more = true
				return nil
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	return updated, more, err
}

// UnreadCounts aggregates unread messages for a recipient by sender.
func (s *BadgerStore) UnreadCounts(_ context.Context, recipientID string) ([]store.UnreadCount, error) {
	counts := make([]store.UnreadCount, 0)
	prefix := []byte(prefixUnread + recipientID + sep)

	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		// Keys arrive sorted by sender, so equal senders are adjacent.
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			rest := string(it.Item().Key()[len(prefix):])
			sender, _, found := strings.Cut(rest, sep)
			if !found {
				continue
			}
			if n := len(counts); n > 0 && counts[n-1].SenderID == sender {
				counts[n-1].Count++
				continue
			}
			counts = append(counts, store.UnreadCount{SenderID: sender, Count: 1})
		}
		return nil
	})
	if err != nil {
		return nil, store.Unavailable("query unread counts", err)
	}
	return counts, nil
}

// markRecordRead rewrites rec as read and drops its unread index entry.
// applied reports whether the record itself was rewritten, which may be true
// even when the index delete fails.
func markRecordRead(txn *badgerdb.Txn, rec *record) (applied bool, err error) {
	rec.Read = true
	value, err := cbor.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("encode message: %w", err)
	}
	if err := txn.Set(rec.convKey(), value); err != nil {
		return false, err
	}
	return true, txn.Delete(rec.unreadKey())
}

func getRecord(txn *badgerdb.Txn, key []byte) (*record, error) {
	item, err := txn.Get(key)
	if err != nil {
		return nil, err
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	var rec record
	if err := cbor.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	return &rec, nil
}

// scanRecords decodes every record under prefix in key order. The iterator is
// closed before returning so callers may write in the same transaction.
func scanRecords(txn *badgerdb.Txn, prefix []byte) ([]*record, error) {
	values, err := scanValues(txn, prefix)
	if err != nil {
		return nil, err
	}
	records := make([]*record, 0, len(values))
	for _, raw := range values {
		var rec record
		if err := cbor.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		records = append(records, &rec)
	}
	return records, nil
}

func scanValues(txn *badgerdb.Txn, prefix []byte) ([][]byte, error) {
	entries, err := scanEntries(txn, prefix, 0)
	if err != nil {
		return nil, err
	}
	values := make([][]byte, 0, len(entries))
	for _, e := range entries {
		values = append(values, e.value)
	}
	return values, nil
}

type entry struct {
	key   []byte
	value []byte
}

// scanEntries copies up to limit entries under prefix; limit 0 means all.
func scanEntries(txn *badgerdb.Txn, prefix []byte, limit int) ([]entry, error) {
	opts := badgerdb.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	var entries []entry
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if limit > 0 && len(entries) == limit {
			break
		}
		item := it.Item()
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry{key: item.KeyCopy(nil), value: raw})
	}
	return entries, nil
}

// Ensure BadgerStore implements store.Store
var _ store.Store = (*BadgerStore)(nil)
