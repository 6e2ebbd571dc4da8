package solver_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kper/funky/solver"
	"github.com/kper/funky/testutils"
)

func TestCrossValidation(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "solver cross-validation suite")
}

var _ = Describe("naive, fast, and sparse tabulation", func() {
	for _, sc := range testutils.All() {
		sc := sc
		Describe(sc.Name, func() {
			It("agrees across naive, fast, and sparse on the set of sink variable names", func() {
				naiveSinks := runAndCollect(sc, solver.Naive)
				fastSinks := runAndCollect(sc, solver.Fast)
				sparseSinks := runAndCollect(sc, solver.Sparse)

				assertSubset(sparseSinks, fastSinks, "sparse", "fast")
				assertSubset(fastSinks, naiveSinks, "fast", "naive")
				Expect(fastSinks).To(Equal(naiveSinks), "fast and naive must be equal, per spec.md §8 invariant 2")
				Expect(sparseSinks).To(Equal(fastSinks), "sparse and fast must be equal, per spec.md §8 invariant 2")

				for _, want := range sc.ExpectedSinks {
					Expect(fastSinks).To(HaveKey(want), "expected sink %q in scenario %s", want, sc.Name)
				}
			})
		})
	}
})

func assertSubset(small, big map[string]bool, smallName, bigName string) {
	GinkgoHelper()
	for name := range small {
		Expect(big).To(HaveKey(name), "%s sink %q missing from %s", smallName, name, bigName)
	}
}

func runAndCollect(sc testutils.Scenario, run func(*solver.Ctx, solver.Request) error) map[string]bool {
	GinkgoHelper()
	ctx := solver.NewCtx(sc.Program)
	Expect(run(ctx, sc.Request)).To(Succeed())

	sinks, err := solver.AllSinks(ctx, sc.Request)
	Expect(err).NotTo(HaveOccurred())

	names := make(map[string]bool, len(sinks))
	for _, f := range sinks {
		names[f.Var.Name] = true
	}
	return names
}
