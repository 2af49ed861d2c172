package database

import "fmt"

func schema(d Dialect) []string {
	ts := d.TimestampType()
	return []string{
		// Принтеры
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS printers (
            id %s,
            tenant_id BIGINT NOT NULL,
            restaurant_id BIGINT NOT NULL DEFAULT 0,
            name TEXT NOT NULL,
            type TEXT NOT NULL,
            ip_address TEXT NOT NULL DEFAULT '',
            port INTEGER NOT NULL DEFAULT 0,
            paper_width INTEGER NOT NULL DEFAULT 80,
            is_receipt %s NOT NULL DEFAULT %s,
            is_active %s NOT NULL DEFAULT %s,
            device_id BIGINT,
            created_at %s NOT NULL,
            updated_at %s NOT NULL
        )`, d.AutoIncrementPK(), d.BoolType(), d.BoolFalse(), d.BoolType(), d.BoolTrue(), ts, ts),

		// Связь принтеров с категориями меню
		`CREATE TABLE IF NOT EXISTS printer_categories (
            printer_id BIGINT NOT NULL,
            category_id BIGINT NOT NULL,
            PRIMARY KEY (printer_id, category_id)
        )`,

		// Агенты печати
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS print_devices (
            id %s,
            tenant_id BIGINT NOT NULL,
            restaurant_id BIGINT NOT NULL DEFAULT 0,
            name TEXT NOT NULL,
            role TEXT NOT NULL DEFAULT '',
            token_hash TEXT NOT NULL UNIQUE,
            last_seen_at %s,
            last_error TEXT NOT NULL DEFAULT '',
            agent_version TEXT NOT NULL DEFAULT '',
            is_active %s NOT NULL DEFAULT %s,
            created_at %s NOT NULL,
            updated_at %s NOT NULL
        )`, d.AutoIncrementPK(), ts, d.BoolType(), d.BoolTrue(), ts, ts),

		// Задания печати
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS print_jobs (
            id %s,
            tenant_id BIGINT NOT NULL,
            restaurant_id BIGINT NOT NULL DEFAULT 0,
            printer_id BIGINT NOT NULL,
            device_id BIGINT,
            order_id BIGINT NOT NULL,
            role TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending',
            payload TEXT NOT NULL,
            printer_type TEXT NOT NULL,
            target_host TEXT NOT NULL DEFAULT '',
            target_port INTEGER NOT NULL DEFAULT 0,
            error_message TEXT NOT NULL DEFAULT '',
            attempts INTEGER NOT NULL DEFAULT 0,
            generation INTEGER NOT NULL DEFAULT 0,
            reprint_of BIGINT,
            created_at %s NOT NULL,
            updated_at %s NOT NULL,
            claimed_at %s,
            completed_at %s,
            UNIQUE (tenant_id, order_id, printer_id, role, generation)
        )`, d.AutoIncrementPK(), ts, ts, ts, ts),

		`CREATE INDEX IF NOT EXISTS idx_printers_tenant ON printers(tenant_id)`,
		`CREATE INDEX IF NOT EXISTS idx_print_devices_tenant ON print_devices(tenant_id)`,
		`CREATE INDEX IF NOT EXISTS idx_print_jobs_claim ON print_jobs(device_id, status, id)`,
		`CREATE INDEX IF NOT EXISTS idx_print_jobs_tenant_status ON print_jobs(tenant_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_print_jobs_order ON print_jobs(tenant_id, order_id)`,
	}
}
