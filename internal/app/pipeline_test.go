package app_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/klabast/wb-services/recycle-kalender/internal/app"
	"github.com/klabast/wb-services/recycle-kalender/internal/audit"
	"github.com/klabast/wb-services/recycle-kalender/internal/geo"
	"github.com/klabast/wb-services/recycle-kalender/internal/recycleapp"
	"github.com/klabast/wb-services/recycle-kalender/internal/upstream"
)

var _ = Describe("Pipeline", func() {
	var (
		fake     *fakeUpstream
		dir      string
		store    audit.Store
		pipeline *app.Pipeline
		today    time.Time
		ctx      context.Context
		addr     geo.Address
	)

	build := func() *app.Pipeline {
		routes, err := geo.ParseRoutes(geo.DefaultRoutes)
		Expect(err).ToNot(HaveOccurred())

		client := upstream.NewClient(upstream.WithTimeout(5 * time.Second))
		return app.NewPipeline(
			geo.NewResolver(client, fake.URL("/v1/"), "api-key", routes, store),
			recycleapp.NewScriptSecretExtractor(client, fake.URL("/site/")),
			recycleapp.NewTokenClient(client, fake.URL("/token"), ""),
			recycleapp.NewCollectionClient(client, fake.URL("/collections"), "", 0),
			app.WithClock(func() time.Time { return today }),
		)
	}

	BeforeEach(func() {
		var err error
		fake = newFakeUpstream()
		dir, err = os.MkdirTemp("", "pipeline")
		Expect(err).ToNot(HaveOccurred())
		store, err = audit.Open(audit.DriverSQLite, "file:"+filepath.Join(dir, "audit.db"), "")
		Expect(err).ToNot(HaveOccurred())

		today = time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC)
		ctx = context.Background()
		addr = geo.Address{PostalCode: 3000, StreetName: "Bondgenotenlaan", HouseNumber: "1"}
		pipeline = build()
	})

	AfterEach(func() {
		fake.Close()
		os.RemoveAll(dir)
	})

	Context("when the address resolves cleanly", func() {
		It("keeps only collection events", func() {
			schedule, err := pipeline.Schedule(ctx, addr, audit.FormatWeb)
			Expect(err).ToNot(HaveOccurred())

			Expect(schedule.Entries).To(HaveLen(1))
			Expect(schedule.Entries[0].Fraction).To(Equal("Restafval"))
			Expect(schedule.Entries[0].Label).To(Equal("dinsdag 12-03-2024"))
			Expect(schedule.Resolved.MunicipalityName).To(Equal("Leuven"))
			Expect(schedule.Window.FromString()).To(Equal("2024-03-01"))
			Expect(schedule.Window.UntilString()).To(Equal("2024-12-31"))

			body := string(app.RenderICS(schedule.Entries, app.RenderOptions{Timezone: "Europe/Brussels"}))
			Expect(strings.Count(body, "BEGIN:VEVENT")).To(Equal(1))
			Expect(body).To(ContainSubstring("DTSTART;VALUE=DATE:20240312"))
		})

		It("records one successful audit entry", func() {
			_, err := pipeline.Schedule(ctx, addr, audit.FormatICS)
			Expect(err).ToNot(HaveOccurred())

			records, err := store.Recent(ctx, 10)
			Expect(err).ToNot(HaveOccurred())
			Expect(records).To(HaveLen(1))
			Expect(records[0].PostalCode).To(Equal(3000))
			Expect(records[0].HTTPStatus).To(Equal("200 OK"))
			Expect(records[0].Warning).To(Equal(audit.NoWarnings))
			Expect(records[0].Format).To(Equal(audit.FormatICS))
		})

		It("requests a fresh token on every run", func() {
			_, err := pipeline.Schedule(ctx, addr, audit.FormatWeb)
			Expect(err).ToNot(HaveOccurred())
			_, err = pipeline.Schedule(ctx, addr, audit.FormatWeb)
			Expect(err).ToNot(HaveOccurred())

			Expect(fake.tokenHits.Load()).To(BeEquivalentTo(2))
		})
	})

	Context("when the address match returns warnings", func() {
		BeforeEach(func() {
			fake.adresmatch = `{"adresMatches":[],"warnings":[{"code":"x","message":"Onbekende straatnaam."}]}`
		})

		It("stops before any token or event fetch and audits the warning", func() {
			_, err := pipeline.Schedule(ctx, addr, audit.FormatWeb)

			var warning *geo.AddressWarning
			Expect(errors.As(err, &warning)).To(BeTrue())
			Expect(warning.Message).To(Equal("Onbekende straatnaam."))
			Expect(fake.tokenHits.Load()).To(BeZero())
			Expect(fake.collectionsHits.Load()).To(BeZero())

			records, err := store.Recent(ctx, 10)
			Expect(err).ToNot(HaveOccurred())
			Expect(records).To(HaveLen(1))
			Expect(records[0].Warning).To(Equal("Onbekende straatnaam."))
		})
	})

	Context("when the secret cannot be found in the script", func() {
		BeforeEach(func() {
			fake.script = `var n="x",c="/api/v2/assets/";`
		})

		It("fails with ExtractionFailed before contacting the token endpoint", func() {
			_, err := pipeline.Schedule(ctx, addr, audit.FormatWeb)

			Expect(errors.Is(err, recycleapp.ErrExtractionFailed)).To(BeTrue())
			Expect(fake.tokenHits.Load()).To(BeZero())
			Expect(fake.collectionsHits.Load()).To(BeZero())
		})
	})

	Context("when the token endpoint refuses", func() {
		BeforeEach(func() {
			fake.tokenStatus = 503
		})

		It("fails with TokenFetchFailed", func() {
			_, err := pipeline.Schedule(ctx, addr, audit.FormatWeb)

			Expect(errors.Is(err, recycleapp.ErrTokenFetchFailed)).To(BeTrue())
			Expect(fake.collectionsHits.Load()).To(BeZero())
		})
	})

	Context("when the postal code is outside every route", func() {
		It("fails without calling the address registry", func() {
			_, err := pipeline.Schedule(ctx, geo.Address{PostalCode: 999, StreetName: "Straat", HouseNumber: "1"}, audit.FormatWeb)

			Expect(errors.Is(err, geo.ErrUnsupportedRegion)).To(BeTrue())
			Expect(fake.adresmatchHits.Load()).To(BeZero())
		})
	})

	Context("when the audit sink is unavailable", func() {
		BeforeEach(func() {
			var err error
			store, err = audit.Open(audit.DriverSQLite, "file:"+filepath.Join(dir, "missing", "audit.db"), "")
			Expect(err).ToNot(HaveOccurred())
			pipeline = build()
		})

		It("surfaces the audit failure and fetches nothing", func() {
			_, err := pipeline.Schedule(ctx, addr, audit.FormatWeb)

			var auditErr *audit.Error
			Expect(errors.As(err, &auditErr)).To(BeTrue())
			Expect(fake.tokenHits.Load()).To(BeZero())
		})
	})

	Context("in December", func() {
		BeforeEach(func() {
			today = time.Date(2024, time.December, 5, 9, 0, 0, 0, time.UTC)
		})

		It("queries until the end of the next year", func() {
			schedule, err := pipeline.Schedule(ctx, addr, audit.FormatWeb)
			Expect(err).ToNot(HaveOccurred())

			Expect(schedule.Window.FromString()).To(Equal("2024-12-01"))
			Expect(schedule.Window.UntilString()).To(Equal("2025-12-31"))
		})
	})
})
