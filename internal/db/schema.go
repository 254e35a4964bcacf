package db

// SchemaSQL contains the database schema initialization SQL.
const SchemaSQL = `
    -- ==========================================================================
    -- USER SETTINGS (record id = user id)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS user_settings SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS language ON user_settings TYPE string DEFAULT 'en';
    DEFINE FIELD IF NOT EXISTS timezone ON user_settings TYPE string DEFAULT 'UTC';
    DEFINE FIELD IF NOT EXISTS thread_mode ON user_settings TYPE bool DEFAULT false;
    DEFINE FIELD IF NOT EXISTS provider ON user_settings TYPE string DEFAULT '';
    DEFINE FIELD IF NOT EXISTS model ON user_settings TYPE string DEFAULT '';
    DEFINE FIELD IF NOT EXISTS api_keys ON user_settings TYPE object FLEXIBLE DEFAULT {};
    DEFINE FIELD IF NOT EXISTS updated ON user_settings TYPE datetime DEFAULT time::now();

    -- ==========================================================================
    -- USER MODES
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS user_mode SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS user_id ON user_mode TYPE string;
    DEFINE FIELD IF NOT EXISTS name ON user_mode TYPE string;
    DEFINE FIELD IF NOT EXISTS description ON user_mode TYPE string;
    -- Names are unique per user regardless of case
    DEFINE FIELD IF NOT EXISTS name_key ON user_mode VALUE string::lowercase(name);
    DEFINE FIELD IF NOT EXISTS created ON user_mode TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS user_mode_user ON user_mode FIELDS user_id;
    DEFINE INDEX IF NOT EXISTS user_mode_unique ON user_mode FIELDS user_id, name_key UNIQUE;

    -- ==========================================================================
    -- LAST SEEN (record id = "<user>/<channel>")
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS last_seen SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS user_id ON last_seen TYPE string;
    DEFINE FIELD IF NOT EXISTS channel_id ON last_seen TYPE string;
    DEFINE FIELD IF NOT EXISTS message_id ON last_seen TYPE string;
    DEFINE FIELD IF NOT EXISTS recorded ON last_seen TYPE datetime DEFAULT time::now();
`
