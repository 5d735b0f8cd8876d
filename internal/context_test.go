package internal_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/document-management/internal"
)

var _ = Describe("WithTimeout", func() {
	It("applies the requested timeout", func() {
		ctx, cancel := internal.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		deadline, ok := ctx.Deadline()
		Expect(ok).To(BeTrue())
		Expect(deadline).To(BeTemporally("~", time.Now().Add(2*time.Second), 100*time.Millisecond))
	})

	It("falls back to the default check timeout for a non-positive duration", func() {
		ctx, cancel := internal.WithTimeout(context.Background(), 0)
		defer cancel()

		deadline, ok := ctx.Deadline()
		Expect(ok).To(BeTrue())
		Expect(deadline).To(BeTemporally("~", time.Now().Add(internal.DefaultCheckTimeout), 100*time.Millisecond))
	})

	It("cancels the derived context", func() {
		ctx, cancel := internal.WithTimeout(context.Background(), time.Minute)
		cancel()
		Expect(ctx.Err()).To(MatchError(context.Canceled))
	})
})
