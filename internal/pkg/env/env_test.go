package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnvPrefersLoadedMap(t *testing.T) {
	Env = map[string]string{"APP_ENV": "dev"}
	defer func() { Env = nil }()

	assert.Equal(t, "dev", GetEnv("APP_ENV", "prod"))
	assert.True(t, IsDev())
	assert.Equal(t, "fallback", GetEnv("NOT_SET_ANYWHERE_12345", "fallback"))
}

func TestRequireEnv(t *testing.T) {
	Env = map[string]string{"TG_API_KEY": "123:abc", "EMPTYVAL": "  "}
	defer func() { Env = nil }()

	val, err := RequireEnv("TG_API_KEY")
	require.NoError(t, err)
	assert.Equal(t, "123:abc", val)

	_, err = RequireEnv("EMPTYVAL")
	assert.Error(t, err)

	_, err = RequireEnv("NOT_SET_ANYWHERE_12345")
	assert.Error(t, err)
}

func TestGetAdminIDs(t *testing.T) {
	defer func() { Env = nil }()

	Env = map[string]string{"ADMIN_IDS": "1, 22,333"}
	ids, err := GetAdminIDs()
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 22, 333}, ids)

	Env = map[string]string{"ADMIN_IDS": "1,abc"}
	_, err = GetAdminIDs()
	assert.Error(t, err)

	Env = map[string]string{"ADMIN_IDS": ", ,"}
	_, err = GetAdminIDs()
	assert.Error(t, err)
}

func TestGetEnvInt(t *testing.T) {
	Env = map[string]string{"SWEEP_INTERVAL_HOURS": "6", "BROKEN": "six"}
	defer func() { Env = nil }()

	assert.Equal(t, 6, GetEnvInt("SWEEP_INTERVAL_HOURS", 24))
	assert.Equal(t, 24, GetEnvInt("BROKEN", 24))
	assert.Equal(t, 24, GetEnvInt("NOT_SET_ANYWHERE_12345", 24))
}
