// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuillPress Contributors

//go:build integration

package store_test

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/quillpress/quillpress/internal/store"
)

var _ = Describe("Schema and fixtures", Ordered, func() {
	var (
		ctx       context.Context
		container *postgres.PostgresContainer
		connStr   string
		pool      *pgxpool.Pool
	)

	BeforeAll(func() {
		ctx = context.Background()

		var err error
		container, err = postgres.Run(ctx,
			"postgres:18-alpine",
			postgres.WithDatabase("quillpress_test"),
			postgres.WithUsername("quillpress"),
			postgres.WithPassword("quillpress"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second),
			),
		)
		Expect(err).NotTo(HaveOccurred())

		connStr, err = container.ConnectionString(ctx, "sslmode=disable")
		Expect(err).NotTo(HaveOccurred())

		pool, err = store.Connect(ctx, connStr, nil)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterAll(func() {
		if pool != nil {
			pool.Close()
		}
		if container != nil {
			_ = container.Terminate(ctx)
		}
	})

	It("applies the account schema", func() {
		m, err := store.NewMigrator(connStr)
		Expect(err).NotTo(HaveOccurred())
		defer func() { _ = m.Close() }()

		pending, err := m.PendingMigrations()
		Expect(err).NotTo(HaveOccurred())
		Expect(pending).To(Equal([]uint{1}))

		Expect(m.Up()).To(Succeed())
		Expect(m.Up()).To(Succeed(), "second run is a no-op")

		version, dirty, err := m.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(Equal(uint(1)))
		Expect(dirty).To(BeFalse())
	})

	It("seeds the default fixtures idempotently", func() {
		f, err := store.DefaultFixtures()
		Expect(err).NotTo(HaveOccurred())

		first, err := store.Seed(ctx, pool, f)
		Expect(err).NotTo(HaveOccurred())
		Expect(first).To(Equal(store.SeedResult{Roles: 3, Permissions: 3, Grants: 3}))

		second, err := store.Seed(ctx, pool, f)
		Expect(err).NotTo(HaveOccurred())
		Expect(second.Grants).To(BeZero())

		var roles, grants int
		Expect(pool.QueryRow(ctx, `SELECT count(*) FROM roles`).Scan(&roles)).To(Succeed())
		Expect(pool.QueryRow(ctx, `SELECT count(*) FROM permissions_roles`).Scan(&grants)).To(Succeed())
		Expect(roles).To(Equal(3))
		Expect(grants).To(Equal(3))
	})

	It("rejects uppercase emails at the schema level", func() {
		_, err := pool.Exec(ctx,
			`INSERT INTO users (uuid, name, email, password) VALUES ('x', 'X', 'X@EXAMPLE.COM', 'h')`)
		Expect(err).To(HaveOccurred())
	})

	It("rolls the schema back", func() {
		m, err := store.NewMigrator(connStr)
		Expect(err).NotTo(HaveOccurred())
		defer func() { _ = m.Close() }()

		Expect(m.Down()).To(Succeed())
		version, _, err := m.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(BeZero())
	})
})
