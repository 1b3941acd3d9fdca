package audit_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/klabast/wb-services/recycle-kalender/internal/audit"
)

var _ = Describe("SQLStore", func() {
	var (
		dir   string
		path  string
		store audit.Store
		ctx   context.Context
	)

	record := func(postal int, warning string, created time.Time) audit.Record {
		return audit.Record{
			Created:     created,
			PostalCode:  postal,
			StreetName:  "Bondgenotenlaan",
			HouseNumber: "1",
			HTTPStatus:  "200 OK",
			Warning:     warning,
			Format:      audit.FormatWeb,
		}
	}

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "audit")
		Expect(err).ToNot(HaveOccurred())
		path = filepath.Join(dir, "audit.db")
		ctx = context.Background()

		store, err = audit.Open(audit.DriverSQLite, "file:"+path+"?_busy_timeout=5000", "")
		Expect(err).ToNot(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(dir)
	})

	It("creates the table lazily on the first record", func() {
		_, err := os.Stat(path)
		Expect(os.IsNotExist(err)).To(BeTrue())

		Expect(store.Record(ctx, record(3000, audit.NoWarnings, time.Now()))).To(Succeed())

		records, err := store.Recent(ctx, 10)
		Expect(err).ToNot(HaveOccurred())
		Expect(records).To(HaveLen(1))
		Expect(records[0].PostalCode).To(Equal(3000))
		Expect(records[0].Warning).To(Equal(audit.NoWarnings))
		Expect(records[0].Format).To(Equal(audit.FormatWeb))
	})

	It("returns the newest records first", func() {
		base := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
		Expect(store.Record(ctx, record(1000, "first", base))).To(Succeed())
		Expect(store.Record(ctx, record(2000, "second", base.Add(time.Minute)))).To(Succeed())
		Expect(store.Record(ctx, record(3000, "third", base.Add(2*time.Minute)))).To(Succeed())

		records, err := store.Recent(ctx, 2)
		Expect(err).ToNot(HaveOccurred())
		Expect(records).To(HaveLen(2))
		Expect(records[0].Warning).To(Equal("third"))
		Expect(records[1].Warning).To(Equal("second"))
		Expect(records[0].Created.Equal(base.Add(2 * time.Minute))).To(BeTrue())
	})

	It("returns an empty list before anything was recorded", func() {
		records, err := store.Recent(ctx, 10)
		Expect(err).ToNot(HaveOccurred())
		Expect(records).To(BeEmpty())
	})

	It("fails when the database cannot be written", func() {
		broken, err := audit.Open(audit.DriverSQLite, "file:"+filepath.Join(dir, "missing", "audit.db"), "")
		Expect(err).ToNot(HaveOccurred())

		Expect(broken.Record(ctx, record(3000, audit.NoWarnings, time.Now()))).ToNot(Succeed())
	})
})

var _ = Describe("Open", func() {
	It("rejects unknown drivers", func() {
		_, err := audit.Open("oracle", "dsn", "")
		Expect(err).To(HaveOccurred())
	})

	It("requires a database name for mongo", func() {
		_, err := audit.Open(audit.DriverMongo, "mongodb://localhost:27017", "")
		Expect(err).To(HaveOccurred())

		store, err := audit.Open(audit.DriverMongo, "mongodb://localhost:27017", "recycle")
		Expect(err).ToNot(HaveOccurred())
		Expect(store).To(BeAssignableToTypeOf(&audit.MongoStore{}))
	})

	It("requires a dsn", func() {
		_, err := audit.Open(audit.DriverSQLite, " ", "")
		Expect(err).To(HaveOccurred())
	})
})
