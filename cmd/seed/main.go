// Command seed prepares a local development environment: the users table,
// a demo user with credits, a demo tenant instance on disk, and a small
// normative SQLite database the citation resolver can answer from.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"log"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	_ "github.com/mattn/go-sqlite3"

	"lexgate/internal/config"
	"lexgate/internal/domain/models"
	"lexgate/internal/repository/postgres"
)

func main() {
	dropTables := flag.Bool("drop-tables", false, "Drop the users table before seeding (fresh start)")
	schemaOnly := flag.Bool("schema-only", false, "Only set up the schema, don't seed demo data")
	flag.Parse()

	_ = godotenv.Load()

	cfg := config.Load()

	if cfg.Environment == "prod" && *dropTables {
		log.Fatalf("BLOCKED: cannot run --drop-tables in production environment")
	}

	log.Printf("Seeding (environment: %s, prefix: %s)", cfg.Environment, cfg.TablePrefix)

	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	tables := postgres.NewTableNames(cfg.TablePrefix)

	if *dropTables {
		if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS "+tables.Users+" CASCADE"); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
		log.Println("Tables dropped")
	}

	if err := runSchema(ctx, pool, tables); err != nil {
		log.Fatalf("Failed to run schema: %v", err)
	}
	log.Println("Schema ready")

	if *schemaOnly {
		return
	}

	if err := seedUsers(ctx, pool, tables); err != nil {
		log.Fatalf("Failed to seed users: %v", err)
	}
	log.Println("Demo users seeded")

	if err := seedInstance(cfg.InstancesRoot, cfg.DefaultInstance, cfg.DefaultModel); err != nil {
		log.Fatalf("Failed to seed instance: %v", err)
	}
	log.Printf("Demo instance written under %s/%s", cfg.InstancesRoot, cfg.DefaultInstance)

	if cfg.NormativeDBPath != "" {
		if err := seedNormativeDB(ctx, cfg.NormativeDBPath); err != nil {
			log.Fatalf("Failed to seed normative database: %v", err)
		}
		log.Printf("Normative database written to %s", cfg.NormativeDBPath)
	}

	log.Println("Seeding complete")
}

// runSchema creates the users table if it doesn't exist. The id column is
// the identity provider's subject claim, so it is TEXT rather than a
// generated UUID.
func runSchema(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames) error {
	createUsers := `
		CREATE TABLE IF NOT EXISTS ` + tables.Users + ` (
			id TEXT PRIMARY KEY,
			display_name TEXT,
			credit_balance BIGINT NOT NULL DEFAULT 0,
			credits_assigned BIGINT NOT NULL DEFAULT 0,
			general_context TEXT,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW(),
			CHECK (credit_balance >= 0)
		)
	`
	if _, err := pool.Exec(ctx, createUsers); err != nil {
		return err
	}
	return nil
}

func seedUsers(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames) error {
	users := []struct {
		id      string
		name    string
		credits int64
		context string
	}{
		{"00000000-0000-0000-0000-000000000001", "Usuario Demo", 500,
			"Abogado independiente, consulta principalmente materias tributarias."},
		{"00000000-0000-0000-0000-000000000002", "Usuario Sin Créditos", 0, ""},
	}

	query := `
		INSERT INTO ` + tables.Users + ` (id, display_name, credit_balance, credits_assigned, general_context)
		VALUES ($1, $2, $3, $3, NULLIF($4, ''))
		ON CONFLICT (id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			credit_balance = EXCLUDED.credit_balance,
			credits_assigned = EXCLUDED.credits_assigned
	`
	for _, u := range users {
		if _, err := pool.Exec(ctx, query, u.id, u.name, u.credits, u.context); err != nil {
			return err
		}
		log.Printf("  user %s (%d credits)", u.name, u.credits)
	}
	return nil
}

// seedInstance writes a complete demo tenant: config.json, builder.json,
// the greeting files, and one knowledge file.
func seedInstance(root, id, model string) error {
	dir := filepath.Join(root, id)
	if err := os.MkdirAll(filepath.Join(dir, "files"), 0o755); err != nil {
		return err
	}

	tenantCfg := models.TenantConfig{
		Model:               model,
		Temperature:         0.3,
		MaxTokens:           4096,
		APIMode:             "streaming",
		MaxHistory:          10,
		MaxChatInteractions: 50,
		WarningThreshold:    5,
		WebSearchEnabled:    true,
		CitationEnforcement: true,
		CitationsEnabled:    true,
		CreditsEnabled:      true,
		InjectDateTime:      true,
		InjectLocale:        true,
		Timezone:            "America/Santiago",
		Locale:              "es-CL",
		Country:             "Chile",
		AllowedSourceDomains: []string{
			"bcn.cl", "leychile.cl", "sii.cl", "dt.gob.cl",
		},
	}

	builder := map[string]string{
		"name": "Asistente Legal Demo",
		"initial_instructions": "Eres un asistente legal chileno. Respondes en español, " +
			"con precisión y citando las normas aplicables en su forma codificada " +
			"(por ejemplo CCCH.Art1545 o DL824.Art10).",
		"base_config": "Responde de forma concisa. Si la consulta excede el ámbito " +
			"legal chileno, indícalo explícitamente.",
		"functional_config": "Cuando cites una norma usa siempre la clave codificada " +
			"para que pueda adjuntarse el texto oficial.",
		"citation_config": "Las citas codificadas se resuelven contra la base " +
			"normativa y se anexan al final de cada respuesta.",
		"initial_greeting": "Hola, soy tu asistente legal. ¿En qué puedo ayudarte hoy?",
		"initialization_message": "Contexto inicial: asistente legal de demostración " +
			"orientado a derecho chileno.",
	}

	knowledge := "Glosario básico:\n" +
		"- CCCH: Código Civil de Chile.\n" +
		"- DL824: Ley sobre Impuesto a la Renta.\n" +
		"- CDT: Código del Trabajo.\n"

	files := map[string][]byte{}

	cfgJSON, err := json.MarshalIndent(&tenantCfg, "", "  ")
	if err != nil {
		return err
	}
	files[filepath.Join(dir, "config.json")] = cfgJSON

	builderJSON, err := json.MarshalIndent(builder, "", "  ")
	if err != nil {
		return err
	}
	files[filepath.Join(dir, "builder.json")] = builderJSON

	files[filepath.Join(dir, "instance_description.txt")] = []byte("Instancia de demostración para consultas legales generales.\n")
	files[filepath.Join(dir, "files", "glosario.md")] = []byte(knowledge)

	for path, content := range files {
		if err := os.WriteFile(path, content, 0o644); err != nil {
			return err
		}
	}
	return nil
}

// seedNormativeDB builds a minimal normas table with a handful of articles
// so the citation resolver has something to answer from.
func seedNormativeDB(ctx context.Context, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return err
	}
	defer db.Close()

	schema := `
		CREATE TABLE IF NOT EXISTS normas (
			clave TEXT NOT NULL,
			norma TEXT NOT NULL,
			norma_tipo TEXT NOT NULL,
			norma_organismo TEXT NOT NULL,
			nombreparte TEXT NOT NULL,
			nombreparte_normalizado TEXT NOT NULL,
			numero_articulo TEXT NOT NULL,
			url_norma_pdf TEXT NOT NULL,
			texto TEXT NOT NULL,
			clasificacion_norma TEXT NOT NULL,
			metadatos_fechaversion TEXT,
			rutacompleta TEXT,
			materias TEXT,
			bloque_juridico TEXT,
			norma_idnorma TEXT,
			metadatos_idparte TEXT,
			PRIMARY KEY (clave, numero_articulo)
		);
		CREATE INDEX IF NOT EXISTS idx_normas_nombre ON normas(clave, nombreparte_normalizado);
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return err
	}

	rows := []struct {
		clave, norma, tipo, organismo, nombre, nombreNorm, articulo, url, texto, clasificacion string
	}{
		{
			"CCCH", "Código Civil", "Código", "Ministerio de Justicia",
			"Artículo 1545", "articulo 1545", "1545",
			"https://www.bcn.cl/leychile/navegar?idNorma=172986",
			"Todo contrato legalmente celebrado es una ley para los contratantes, y no puede ser invalidado sino por su consentimiento mutuo o por causas legales.",
			"Civil",
		},
		{
			"DL824", "Ley sobre Impuesto a la Renta", "Decreto Ley", "Ministerio de Hacienda",
			"Artículo 10", "articulo 10", "10",
			"https://www.bcn.cl/leychile/navegar?idNorma=6368",
			"Se considerarán rentas de fuente chilena, las que provengan de bienes situados en el país o de actividades desarrolladas en él cualquiera que sea el domicilio o residencia del contribuyente.",
			"Tributario",
		},
		{
			"CDT", "Código del Trabajo", "Código", "Ministerio del Trabajo y Previsión Social",
			"Artículo 7", "articulo 7", "7",
			"https://www.bcn.cl/leychile/navegar?idNorma=207436",
			"Contrato individual de trabajo es una convención por la cual el empleador y el trabajador se obligan recíprocamente, éste a prestar servicios personales bajo dependencia y subordinación del primero, y aquél a pagar por estos servicios una remuneración determinada.",
			"Laboral",
		},
	}

	insert := `
		INSERT OR REPLACE INTO normas (
			clave, norma, norma_tipo, norma_organismo, nombreparte,
			nombreparte_normalizado, numero_articulo, url_norma_pdf, texto,
			clasificacion_norma, metadatos_fechaversion
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '2026-01-01')
	`
	for _, r := range rows {
		if _, err := db.ExecContext(ctx, insert,
			r.clave, r.norma, r.tipo, r.organismo, r.nombre,
			r.nombreNorm, r.articulo, r.url, r.texto, r.clasificacion,
		); err != nil {
			return err
		}
		log.Printf("  norma %s art. %s", r.clave, r.articulo)
	}
	return nil
}
