package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/s4li/talamala-v4-sub000/internal/models"
)

func TestSettingInt(t *testing.T) {
	// JSONB numbers decode as float64; seeded values may be native ints.
	v, ok := settingInt(models.AdminSettings{Value: models.JSONB{"value": float64(9)}})
	assert.True(t, ok)
	assert.Equal(t, int64(9), v)

	v, ok = settingInt(models.AdminSettings{Value: models.JSONB{"value": int64(600)}})
	assert.True(t, ok)
	assert.Equal(t, int64(600), v)

	v, ok = settingInt(models.AdminSettings{Value: models.JSONB{"value": 42}})
	assert.True(t, ok)
	assert.Equal(t, int64(42), v)

	_, ok = settingInt(models.AdminSettings{Value: models.JSONB{"value": "9"}})
	assert.False(t, ok)

	_, ok = settingInt(models.AdminSettings{Value: models.JSONB{}})
	assert.False(t, ok)
}

func TestSettingBool(t *testing.T) {
	v, ok := settingBool(models.AdminSettings{Value: models.JSONB{"value": true}})
	assert.True(t, ok)
	assert.True(t, v)

	_, ok = settingBool(models.AdminSettings{Value: models.JSONB{"value": "true"}})
	assert.False(t, ok)

	_, ok = settingBool(models.AdminSettings{Value: models.JSONB{}})
	assert.False(t, ok)
}
