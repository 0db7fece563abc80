package store

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync/atomic"
	"time"

	"companion/pkg/affection"
	apperrors "companion/pkg/errors"
	"companion/pkg/persona"
	"companion/pkg/surreal"
)

// querier is the subset of *surreal.Client the store needs.
type querier interface {
	Query(ctx context.Context, sql string, vars map[string]interface{}) (interface{}, error)
	SelectWhere(ctx context.Context, table string, filter map[string]interface{}, orderBy string, limit int) ([]map[string]interface{}, error)
}

type SurrealStore struct {
	client querier
	seq    atomic.Int64
}

func NewSurrealStore(client *surreal.Client) *SurrealStore {
	return newSurrealStore(client)
}

func newSurrealStore(client querier) *SurrealStore {
	s := &SurrealStore{client: client}
	s.seq.Store(time.Now().UnixNano())
	return s
}

func (s *SurrealStore) Init(ctx context.Context) error {
	query := `
		DEFINE TABLE IF NOT EXISTS personas SCHEMAFULL;
		DEFINE FIELD IF NOT EXISTS persona_id ON personas TYPE string;
		DEFINE FIELD IF NOT EXISTS name ON personas TYPE string;
		DEFINE FIELD IF NOT EXISTS age ON personas TYPE int ASSERT $value >= 18;
		DEFINE FIELD IF NOT EXISTS occupation ON personas TYPE string;
		DEFINE FIELD IF NOT EXISTS locale ON personas TYPE string;
		DEFINE FIELD IF NOT EXISTS personality ON personas TYPE string;
		DEFINE FIELD IF NOT EXISTS likes ON personas TYPE array<string>;
		DEFINE FIELD IF NOT EXISTS dislikes ON personas TYPE array<string>;
		DEFINE FIELD IF NOT EXISTS archetype_id ON personas TYPE string;
		DEFINE FIELD IF NOT EXISTS custom ON personas TYPE bool;

		DEFINE TABLE IF NOT EXISTS affection SCHEMAFULL;
		DEFINE FIELD IF NOT EXISTS user_id ON affection TYPE string;
		DEFINE FIELD IF NOT EXISTS persona_id ON affection TYPE string;
		DEFINE FIELD IF NOT EXISTS score ON affection TYPE int ASSERT $value >= 0 AND $value <= 100;
		DEFINE FIELD IF NOT EXISTS mood ON affection TYPE string;
		DEFINE FIELD IF NOT EXISTS updated_at ON affection TYPE int;

		DEFINE TABLE IF NOT EXISTS turns SCHEMAFULL;
		DEFINE FIELD IF NOT EXISTS user_id ON turns TYPE string;
		DEFINE FIELD IF NOT EXISTS persona_id ON turns TYPE string;
		DEFINE FIELD IF NOT EXISTS sender ON turns TYPE string;
		DEFINE FIELD IF NOT EXISTS text ON turns TYPE string;
		DEFINE FIELD IF NOT EXISTS media_url ON turns TYPE string DEFAULT "";
		DEFINE FIELD IF NOT EXISTS timestamp ON turns TYPE int;
		DEFINE FIELD IF NOT EXISTS seq ON turns TYPE int;
		DEFINE INDEX IF NOT EXISTS turns_pair_idx ON turns FIELDS user_id, persona_id, timestamp;

		DEFINE TABLE IF NOT EXISTS media_assets SCHEMAFULL;
		DEFINE FIELD IF NOT EXISTS persona_id ON media_assets TYPE string;
		DEFINE FIELD IF NOT EXISTS photo_type ON media_assets TYPE string;
		DEFINE FIELD IF NOT EXISTS fingerprint ON media_assets TYPE string;
		DEFINE FIELD IF NOT EXISTS path ON media_assets TYPE string;
		DEFINE FIELD IF NOT EXISTS public_url ON media_assets TYPE string;
		DEFINE FIELD IF NOT EXISTS content_type ON media_assets TYPE string;
		DEFINE FIELD IF NOT EXISTS width ON media_assets TYPE int;
		DEFINE FIELD IF NOT EXISTS height ON media_assets TYPE int;
		DEFINE FIELD IF NOT EXISTS size ON media_assets TYPE int;
		DEFINE INDEX IF NOT EXISTS media_path_idx ON media_assets FIELDS path UNIQUE;
	`
	if _, err := s.client.Query(ctx, query, nil); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

func (s *SurrealStore) SavePersona(ctx context.Context, p persona.Persona) error {
	if err := p.Validate(); err != nil {
		return err
	}
	query := `UPSERT type::thing("personas", $persona_id) CONTENT {
		persona_id: $persona_id,
		name: $name,
		age: $age,
		occupation: $occupation,
		locale: $locale,
		personality: $personality,
		likes: $likes,
		dislikes: $dislikes,
		archetype_id: $archetype_id,
		custom: $custom
	};`
	_, err := s.client.Query(ctx, query, map[string]interface{}{
		"persona_id":   p.ID,
		"name":         p.Name,
		"age":          p.Age,
		"occupation":   p.Occupation,
		"locale":       p.Locale,
		"personality":  p.Personality,
		"likes":        nonNil(p.Likes),
		"dislikes":     nonNil(p.Dislikes),
		"archetype_id": p.ArchetypeID,
		"custom":       p.Custom,
	})
	return err
}

func (s *SurrealStore) GetPersona(ctx context.Context, id string) (*persona.Persona, error) {
	rows, err := s.client.SelectWhere(ctx, "personas", map[string]interface{}{"persona_id": id}, "", 1)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &NotFoundError{Kind: "persona", ID: id}
	}
	p := rowToPersona(rows[0])
	return &p, nil
}

func (s *SurrealStore) GetAffection(ctx context.Context, userID, personaID string) (persona.AffectionState, error) {
	rows, err := s.client.SelectWhere(ctx, "affection", map[string]interface{}{
		"user_id":    userID,
		"persona_id": personaID,
	}, "", 1)
	if err != nil {
		return persona.AffectionState{}, err
	}
	if len(rows) == 0 {
		return persona.AffectionState{UserID: userID, PersonaID: personaID, Mood: affection.MoodNeutral}, nil
	}
	return rowToAffection(rows[0], userID, personaID)
}

// The clamp happens inside the statement so concurrent deltas cannot push the
// score out of range.
const applyDeltaQuery = `UPSERT type::thing("affection", [$user_id, $persona_id]) SET
	user_id = $user_id,
	persona_id = $persona_id,
	score = math::max([$min, math::min([$max, (score ?? 0) + $delta])]),
	mood = mood ?? "neutral",
	updated_at = time::unix()
RETURN AFTER;`

func (s *SurrealStore) ApplyAffectionDelta(ctx context.Context, userID, personaID string, delta int) (persona.AffectionState, error) {
	result, err := s.client.Query(ctx, applyDeltaQuery, map[string]interface{}{
		"user_id":    userID,
		"persona_id": personaID,
		"delta":      delta,
		"min":        affection.MinScore,
		"max":        affection.MaxScore,
	})
	if err != nil {
		return persona.AffectionState{}, err
	}
	rows := surreal.Rows(result)
	if len(rows) == 0 {
		return persona.AffectionState{}, fmt.Errorf("affection update for %s/%s returned no row", userID, personaID)
	}
	return rowToAffection(rows[0], userID, personaID)
}

func (s *SurrealStore) SetMood(ctx context.Context, userID, personaID string, mood affection.Mood) error {
	query := `UPSERT type::thing("affection", [$user_id, $persona_id]) SET
		user_id = $user_id,
		persona_id = $persona_id,
		score = score ?? 0,
		mood = $mood,
		updated_at = time::unix();`
	_, err := s.client.Query(ctx, query, map[string]interface{}{
		"user_id":    userID,
		"persona_id": personaID,
		"mood":       string(mood),
	})
	return err
}

func (s *SurrealStore) AppendTurn(ctx context.Context, turn persona.Turn) (persona.Turn, error) {
	if err := validateTurn(turn); err != nil {
		return persona.Turn{}, err
	}
	turn.Seq = s.seq.Add(1)
	query := `CREATE turns CONTENT {
		user_id: $user_id,
		persona_id: $persona_id,
		sender: $sender,
		text: $text,
		media_url: $media_url,
		timestamp: $timestamp,
		seq: $seq
	};`
	_, err := s.client.Query(ctx, query, map[string]interface{}{
		"user_id":    turn.UserID,
		"persona_id": turn.PersonaID,
		"sender":     turn.Sender.String(),
		"text":       turn.Text,
		"media_url":  turn.MediaURL,
		"timestamp":  turn.Timestamp.UnixNano(),
		"seq":        turn.Seq,
	})
	if err != nil {
		return persona.Turn{}, err
	}
	return turn, nil
}

func (s *SurrealStore) RecentTurns(ctx context.Context, userID, personaID string, limit int) ([]persona.Turn, error) {
	if limit <= 0 {
		return []persona.Turn{}, nil
	}
	query := `SELECT * FROM turns
		WHERE user_id = $user_id AND persona_id = $persona_id
		ORDER BY timestamp DESC, seq DESC
		LIMIT $limit;`
	result, err := s.client.Query(ctx, query, map[string]interface{}{
		"user_id":    userID,
		"persona_id": personaID,
		"limit":      limit,
	})
	if err != nil {
		return nil, err
	}

	rows := surreal.Rows(result)
	turns := make([]persona.Turn, 0, len(rows))
	for _, row := range rows {
		turn, err := rowToTurn(row)
		if err != nil {
			log.Printf("Skipping unreadable turn for %s/%s: %v", userID, personaID, err)
			continue
		}
		turns = append(turns, turn)
	}
	sortTurns(turns)
	return turns, nil
}

func (s *SurrealStore) RecordMediaAsset(ctx context.Context, asset persona.MediaAsset) error {
	if asset.Path == "" || asset.PublicURL == "" {
		return &apperrors.ValidationError{Field: "path", Value: asset.Path, Message: "asset needs a path and a public url"}
	}
	// The path is content addressed, so the first record wins.
	query := `INSERT IGNORE INTO media_assets {
		id: type::thing("media_assets", $path),
		persona_id: $persona_id,
		photo_type: $photo_type,
		fingerprint: $fingerprint,
		path: $path,
		public_url: $public_url,
		content_type: $content_type,
		width: $width,
		height: $height,
		size: $size
	};`
	_, err := s.client.Query(ctx, query, map[string]interface{}{
		"persona_id":   asset.PersonaID,
		"photo_type":   asset.PhotoType.Slug(),
		"fingerprint":  asset.Fingerprint,
		"path":         asset.Path,
		"public_url":   asset.PublicURL,
		"content_type": asset.ContentType,
		"width":        asset.Width,
		"height":       asset.Height,
		"size":         asset.Size,
	})
	return err
}

func (s *SurrealStore) MediaAssets(ctx context.Context, personaID string) ([]persona.MediaAsset, error) {
	rows, err := s.client.SelectWhere(ctx, "media_assets", map[string]interface{}{"persona_id": personaID}, "path", 0)
	if err != nil {
		return nil, err
	}
	assets := make([]persona.MediaAsset, 0, len(rows))
	for _, row := range rows {
		photoType, err := persona.ParsePhotoType(surreal.String(row, "photo_type"))
		if err != nil {
			log.Printf("Skipping media asset %s: %v", surreal.String(row, "path"), err)
			continue
		}
		assets = append(assets, persona.MediaAsset{
			PersonaID:   surreal.String(row, "persona_id"),
			PhotoType:   photoType,
			Fingerprint: surreal.String(row, "fingerprint"),
			Path:        surreal.String(row, "path"),
			PublicURL:   surreal.String(row, "public_url"),
			ContentType: surreal.String(row, "content_type"),
			Width:       int(surreal.Int(row, "width")),
			Height:      int(surreal.Int(row, "height")),
			Size:        surreal.Int(row, "size"),
		})
	}
	return assets, nil
}

func rowToPersona(row map[string]interface{}) persona.Persona {
	return persona.Persona{
		ID:          surreal.String(row, "persona_id"),
		Name:        surreal.String(row, "name"),
		Age:         int(surreal.Int(row, "age")),
		Occupation:  surreal.String(row, "occupation"),
		Locale:      surreal.String(row, "locale"),
		Personality: surreal.String(row, "personality"),
		Likes:       surreal.Strings(row, "likes"),
		Dislikes:    surreal.Strings(row, "dislikes"),
		ArchetypeID: surreal.String(row, "archetype_id"),
		Custom:      surreal.Bool(row, "custom"),
	}
}

func rowToAffection(row map[string]interface{}, userID, personaID string) (persona.AffectionState, error) {
	score := int(surreal.Int(row, "score"))
	if score < affection.MinScore || score > affection.MaxScore {
		return persona.AffectionState{}, &affection.RangeError{Score: score}
	}
	mood, ok := affection.ParseMood(surreal.String(row, "mood"))
	if !ok {
		log.Printf("Unknown mood %q for %s/%s, using neutral", surreal.String(row, "mood"), userID, personaID)
	}
	return persona.AffectionState{UserID: userID, PersonaID: personaID, Score: score, Mood: mood}, nil
}

func rowToTurn(row map[string]interface{}) (persona.Turn, error) {
	sender, err := persona.ParseSender(surreal.String(row, "sender"))
	if err != nil {
		return persona.Turn{}, err
	}
	return persona.Turn{
		UserID:    surreal.String(row, "user_id"),
		PersonaID: surreal.String(row, "persona_id"),
		Sender:    sender,
		Text:      surreal.String(row, "text"),
		MediaURL:  surreal.String(row, "media_url"),
		Timestamp: time.Unix(0, surreal.Int(row, "timestamp")).UTC(),
		Seq:       surreal.Int(row, "seq"),
	}, nil
}

func sortTurns(turns []persona.Turn) {
	sort.SliceStable(turns, func(i, j int) bool {
		if !turns[i].Timestamp.Equal(turns[j].Timestamp) {
			return turns[i].Timestamp.Before(turns[j].Timestamp)
		}
		return turns[i].Seq < turns[j].Seq
	})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
