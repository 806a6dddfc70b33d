package devmem_test

import (
	"testing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/lumenct/fdkrecon/devmem"
)

func TestDevmemSuite(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "devmem pool suite")
}

var _ = Describe("Pool", func() {
	var pool *devmem.Pool[float32]

	BeforeEach(func() {
		pool = devmem.NewPool[float32](0, 2)
	})

	Describe("allocate/release", func() {
		It("returns a pitched buffer at least as wide as requested", func() {
			h, err := pool.AllocateSmart(5, 3)
			Expect(err).NotTo(HaveOccurred())
			defer h.Release()

			buf := h.Buffer()
			Expect(buf.Pitch).To(BeNumerically(">=", buf.Width))
			Expect(buf.Height).To(Equal(3))
			Expect(len(buf.Data)).To(Equal(buf.Pitch * buf.Height))
		})

		It("tracks outstanding handles until they are released", func() {
			h, err := pool.AllocateSmart(4, 4)
			Expect(err).NotTo(HaveOccurred())
			Expect(pool.Outstanding()).To(Equal(1))

			h.Release()
			Expect(pool.Outstanding()).To(Equal(0))
		})

		It("is safe to release the same handle twice", func() {
			h, err := pool.AllocateSmart(4, 4)
			Expect(err).NotTo(HaveOccurred())
			h.Release()
			Expect(func() { h.Release() }).NotTo(Panic())
			Expect(pool.Outstanding()).To(Equal(0))
		})
	})

	Describe("destroy", func() {
		It("rejects further allocations after Destroy", func() {
			Expect(pool.Destroy(nil)).To(Succeed())
			_, err := pool.AllocateSmart(2, 2)
			Expect(err).To(HaveOccurred())
		})
	})
})
