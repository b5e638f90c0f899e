// The config package loads server configuration from environment
// variables:
//
//   - HOST, PORT: listen address
//   - CONCURRENCY_PER_SID: active game cap per owner (default 3)
//   - GAME_TTL_MINUTES: idle session time-to-live (default 30)
//   - SWEEP_INTERVAL_SECONDS: reclamation sweep interval (default 60)
//   - ENGINE_PATH, MODEL_PATH, GTP_CONFIG_PATH: analysis engine; when
//     any is absent the server runs with the placeholder engine
//   - EXERCISES_DIR, EXERCISES_DB: exercise artifact storage
//
// Values are read once at startup. A .env file, when present, is
// loaded by the entrypoint before parsing.
package config
