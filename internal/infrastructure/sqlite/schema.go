package sqlite

// Schema creates the catalog and embedding tables
const Schema = `
CREATE TABLE IF NOT EXISTS foods (
    id INTEGER PRIMARY KEY,
    food_code TEXT NOT NULL UNIQUE,
    food_name TEXT NOT NULL,
    common_name TEXT,
    serving_size TEXT,
    energy_kcal REAL,
    protein_g REAL,
    fat_g REAL,
    carbohydrate_g REAL,
    sugars_g REAL,
    dietary_fiber_g REAL,
    sodium_mg REAL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_foods_name ON foods(food_name);

-- One embedding per food; food_id is the upsert key
CREATE TABLE IF NOT EXISTS food_embeddings (
    food_id INTEGER PRIMARY KEY REFERENCES foods(id) ON DELETE CASCADE,
    dimension INTEGER NOT NULL CHECK (dimension > 0),
    embedding TEXT NOT NULL,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL
);
`
