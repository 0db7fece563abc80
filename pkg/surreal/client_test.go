package surreal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateIdentifier(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"Valid simple", "turns", false},
		{"Valid with underscore", "persona_id", false},
		{"Valid with numbers", "field1", false},
		{"Valid with mixed case", "PersonaId", false},
		{"Invalid space", "persona id", true},
		{"Invalid semicolon", "persona;id", true},
		{"Invalid dash", "persona-id", true},
		{"Invalid special char", "persona$", true},
		{"Invalid SQL injection", "turns; DROP TABLE turns", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := validateIdentifier(tt.input); (err != nil) != tt.wantErr {
				t.Errorf("validateIdentifier() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBuildWhereClause(t *testing.T) {
	tests := []struct {
		name    string
		filter  map[string]interface{}
		want    string
		wantErr bool
	}{
		{"Empty filter", map[string]interface{}{}, "true", false},
		{"Single filter", map[string]interface{}{"user_id": "123"}, "user_id = $user_id", false},
		{"Sorted keys", map[string]interface{}{"user_id": "1", "persona_id": "lea"}, "persona_id = $persona_id AND user_id = $user_id", false},
		{"Invalid key", map[string]interface{}{"user id": "123"}, "", true},
		{"Injection key", map[string]interface{}{"id; --": "123"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildWhereClause(tt.filter)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildSelect(t *testing.T) {
	got, err := buildSelect("turns", map[string]interface{}{"user_id": "u"}, "timestamp desc", 20)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM turns WHERE user_id = $user_id ORDER BY timestamp DESC LIMIT 20;", got)

	got, err = buildSelect("personas", nil, "", 0)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM personas WHERE true;", got)

	_, err = buildSelect("turns;", nil, "", 0)
	assert.Error(t, err)
	_, err = buildSelect("turns", nil, "timestamp; DELETE turns", 0)
	assert.Error(t, err)
	_, err = buildSelect("turns", nil, "timestamp sideways", 0)
	assert.Error(t, err)
}

func TestRowHelpers(t *testing.T) {
	rows := Rows([]interface{}{
		map[string]interface{}{"score": uint64(42), "name": "Léa", "likes": []interface{}{"jazz", 3, "rain"}, "custom": true},
		"not a row",
	})
	require.Len(t, rows, 1)
	row := rows[0]

	assert.Equal(t, int64(42), Int(row, "score"))
	assert.Equal(t, int64(0), Int(row, "missing"))
	assert.Equal(t, "Léa", String(row, "name"))
	assert.Equal(t, []string{"jazz", "rain"}, Strings(row, "likes"))
	assert.True(t, Bool(row, "custom"))

	assert.Len(t, Rows(map[string]interface{}{"a": 1}), 1)
	assert.Nil(t, Rows(nil))
}

func TestNormalizeHost(t *testing.T) {
	assert.Equal(t, "wss://db.example.com/rpc", NormalizeHost("db.example.com"))
	assert.Equal(t, "ws://localhost:8000/rpc", NormalizeHost("ws://localhost:8000/rpc"))
	assert.Equal(t, "", NormalizeHost(""))
}
