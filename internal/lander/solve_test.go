package lander_test

import (
	"context"
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/moonlander/internal/dynamo"
	"github.com/san-kum/moonlander/internal/integrators"
	"github.com/san-kum/moonlander/internal/lander"
	"github.com/san-kum/moonlander/internal/sim"
)

var _ = Describe("Solve", func() {
	var (
		ctx  context.Context
		ic   lander.InitialConditions
		w    lander.Weights
		opts lander.Options
	)

	BeforeEach(func() {
		ctx = context.Background()
		ic = lander.InitialConditions{X: 5, Y: 10, VX: 1}
		w = lander.DefaultWeights()
		opts = lander.DefaultOptions()
	})

	It("converges from the default options", func() {
		tr, err := lander.SolveBaseline(ctx, ic, w, lander.DefaultOptions())
		Expect(err).NotTo(HaveOccurred())
		Expect(tr.TF).To(BeNumerically("~", 4.75873, 1e-3))
		Expect(tr.Touchdown()[2]).To(BeNumerically("~", 0.07754, 1e-3))
	})

	It("converges from the descent guess whatever the fallback tf", func() {
		for _, tf := range []float64{2, 8, 10, 20, 50} {
			opts.Guess.TF = tf
			tr, err := lander.SolveBaseline(ctx, lander.InitialConditions{X: 0, Y: 10, VX: 2}, w, opts)
			Expect(err).NotTo(HaveOccurred())
			Expect(tr.TF).To(BeNumerically("~", 4.7897, 1e-3))
		}
	})

	Describe("baseline descent", func() {
		var tr *lander.Trajectory

		BeforeEach(func() {
			var err error
			tr, err = lander.SolveBaseline(ctx, ic, w, opts)
			Expect(err).NotTo(HaveOccurred())
		})

		It("starts at the initial conditions and touches down", func() {
			Expect(tr.X[0]).To(BeNumerically("~", 5, 1e-3))
			Expect(tr.Y[0]).To(BeNumerically("~", 10, 1e-3))
			Expect(tr.VX[0]).To(BeNumerically("~", 1, 1e-3))
			Expect(tr.VY[0]).To(BeNumerically("~", 0, 1e-3))
			Expect(tr.Touchdown()[1]).To(BeNumerically("~", 0, 1e-3))
		})

		It("finds a positive finite final time", func() {
			Expect(tr.TF).To(BeNumerically(">", 0))
			Expect(math.IsInf(tr.TF, 0)).To(BeFalse())
			Expect(tr.T[tr.Len()-1]).To(BeNumerically("~", tr.TF, 1e-9))
		})

		It("derives the controls from the costates exactly", func() {
			for i := 0; i < tr.Len(); i++ {
				Expect(tr.UX[i]).To(Equal(tr.P3[i] / (2 * w.Alpha)))
				Expect(tr.UY[i]).To(Equal(tr.P4[i] / (2 * w.Alpha)))
				Expect(tr.AY[i]).To(Equal(tr.UY[i] - w.Gravity))
				Expect(tr.Thrust[i]).To(BeNumerically(">=", 0))
			}
		})

		It("satisfies the free final time condition", func() {
			h := tr.Hamiltonian()
			Expect(h[len(h)-1]).To(BeNumerically("~", 0, 2e-3))
			// No potential depends on time, so H is conserved.
			for _, v := range h {
				Expect(v).To(BeNumerically("~", 0, 1e-2))
			}
		})

		It("balances touchdown speed against flight time", func() {
			vxf := tr.Touchdown()[2]
			Expect(vxf * (1 + w.Beta*tr.TF/w.Alpha)).To(BeNumerically("~", ic.VX, 1e-2))
		})

		It("is reproducible", func() {
			again, err := lander.SolveBaseline(ctx, ic, w, opts)
			Expect(err).NotTo(HaveOccurred())
			Expect(again.TF).To(Equal(tr.TF))
			Expect(again.Y).To(Equal(tr.Y))
			Expect(again.UX).To(Equal(tr.UX))
		})

		It("agrees with forward shooting of the state-costate equations", func() {
			last := tr.StateAt(tr.Len() - 1)
			end := tr.Shoot(integrators.NewRK4(), 2000)
			Expect(end.Sub(last).Norm()).To(BeNumerically("<", 1e-2*(1+last.Norm())))
		})

		It("lands when the thrust schedule is replayed on the plant", func() {
			s := sim.New(lander.NewPlant(w.Gravity), integrators.NewRK4(), lander.NewOpenLoop(tr))
			res, err := s.Run(ctx, ic.State(), sim.Config{Dt: 1e-3, Duration: tr.TF})
			Expect(err).NotTo(HaveOccurred())
			final := res.Final()
			Expect(final[1]).To(BeNumerically("~", 0, 5e-2))
			Expect(final[0]).To(BeNumerically("~", tr.Touchdown()[0], 5e-2))
		})

		It("resamples onto a uniform grid", func() {
			rs, err := tr.Resample(41)
			Expect(err).NotTo(HaveOccurred())
			Expect(rs.Len()).To(Equal(41))
			Expect(rs.T[20]).To(BeNumerically("~", tr.TF/2, 1e-9))
			Expect(rs.Y[0]).To(BeNumerically("~", tr.Y[0], 1e-9))
			Expect(rs.Y[40]).To(BeNumerically("~", tr.Touchdown()[1], 1e-9))
		})
	})

	Describe("obstacles", func() {
		It("reproduces the baseline when the obstacle is far away", func() {
			base, err := lander.SolveBaseline(ctx, ic, w, opts)
			Expect(err).NotTo(HaveOccurred())

			far := []lander.Obstacle{
				lander.NewObstacle(1, 1, lander.LinearPath{X0: 1e4, Y0: 1e4}, 500),
				{RX: 1, RY: 1, Center: lander.LinearPath{X0: 1000, Y0: 1000}, Weight: 1, Sharpness: 1},
			}
			tr, err := lander.SolveWithObstacles(ctx, ic, w, far, opts)
			Expect(err).NotTo(HaveOccurred())
			Expect(tr.TF).To(BeNumerically("~", base.TF, 1e-4))

			a, err := base.Resample(50)
			Expect(err).NotTo(HaveOccurred())
			b, err := tr.Resample(50)
			Expect(err).NotTo(HaveOccurred())
			for i := range a.X {
				Expect(b.X[i]).To(BeNumerically("~", a.X[i], 1e-4))
				Expect(b.Y[i]).To(BeNumerically("~", a.Y[i], 1e-4))
			}
		})

		It("bends the path around a nearby obstacle and keeps H(tf) = 0", func() {
			near := lander.Obstacle{RX: 1, RY: 1, Center: lander.LinearPath{X0: 6.5, Y0: 5}, Weight: 1, Sharpness: 1}
			tr, err := lander.SolveWithObstacles(ctx, ic, w, []lander.Obstacle{near}, opts)
			Expect(err).NotTo(HaveOccurred())

			f := tr.Formulation()
			Expect(f.Terms).To(HaveLen(1))
			Expect(f.Hamiltonian(tr.TF, tr.StateAt(tr.Len()-1))).To(BeNumerically("~", 0, 2e-3))

			var maxP1 float64
			for _, v := range tr.P1 {
				maxP1 = math.Max(maxP1, math.Abs(v))
			}
			Expect(maxP1).To(BeNumerically(">", 1e-6))
		})
	})

	Describe("final approach angle", func() {
		angle := lander.FinalAngle{Mode: lander.Barrier, Rho: 1}

		It("is the baseline when switched off", func() {
			base, err := lander.SolveBaseline(ctx, ic, w, opts)
			Expect(err).NotTo(HaveOccurred())
			off, err := lander.SolveWithFinalAngle(ctx, ic, w, angle, false, opts)
			Expect(err).NotTo(HaveOccurred())
			Expect(off.TF).To(Equal(base.TF))
		})

		DescribeTable("lowers the horizontal touchdown speed",
			func(angle lander.FinalAngle, maxVX float64) {
				base, err := lander.SolveBaseline(ctx, ic, w, opts)
				Expect(err).NotTo(HaveOccurred())
				on, err := lander.SolveWithFinalAngle(ctx, ic, w, angle, true, opts)
				Expect(err).NotTo(HaveOccurred())

				Expect(on.Formulation().Hamiltonian(on.TF, on.StateAt(on.Len()-1))).To(BeNumerically("~", 0, 2e-3))
				Expect(on.Touchdown()[1]).To(BeNumerically("~", 0, 1e-3))
				Expect(math.Abs(on.Touchdown()[2])).To(BeNumerically("<", math.Abs(base.Touchdown()[2])))
				Expect(math.Abs(on.Touchdown()[2])).To(BeNumerically("<", maxVX))
			},
			Entry("wide barrier", lander.FinalAngle{Mode: lander.Barrier, Rho: 1}, 0.076),
			Entry("default barrier", lander.DefaultFinalAngle(), 0.025),
			Entry("step", lander.FinalAngle{Mode: lander.Step, Zeta: 10, Eps: 1}, 0.072),
		)

		It("keeps the control law independent of the penalty", func() {
			on, err := lander.SolveWithFinalAngle(ctx, ic, w, lander.DefaultFinalAngle(), true, opts)
			Expect(err).NotTo(HaveOccurred())
			for i := 0; i < on.Len(); i++ {
				Expect(on.UX[i]).To(Equal(on.P3[i] / (2 * w.Alpha)))
			}
		})
	})

	Describe("failures", func() {
		It("reports non-convergence when the node ceiling is too low", func() {
			opts.Tol = 1e-10
			opts.Guess.MeshSize = 20
			opts.MaxNodes = 20
			tr, err := lander.SolveWithFinalAngle(ctx, ic, w, lander.FinalAngle{Mode: lander.Barrier, Rho: 1}, true, opts)
			Expect(tr).To(BeNil())
			Expect(errors.Is(err, dynamo.ErrNotConverged)).To(BeTrue())
			var se *dynamo.SolveError
			Expect(errors.As(err, &se)).To(BeTrue())
		})

		DescribeTable("rejects ill-posed inputs before solving",
			func(mutate func(*lander.InitialConditions, *lander.Weights, *lander.Options) []lander.Obstacle) {
				obstacles := mutate(&ic, &w, &opts)
				_, err := lander.SolveWithObstacles(ctx, ic, w, obstacles, opts)
				Expect(errors.Is(err, dynamo.ErrInvalidInput)).To(BeTrue())
			},
			Entry("non-finite height", func(ic *lander.InitialConditions, _ *lander.Weights, _ *lander.Options) []lander.Obstacle {
				ic.Y = math.Inf(1)
				return nil
			}),
			Entry("mesh of one node", func(_ *lander.InitialConditions, _ *lander.Weights, o *lander.Options) []lander.Obstacle {
				o.Guess.MeshSize = 1
				return nil
			}),
			Entry("zero alpha", func(_ *lander.InitialConditions, w *lander.Weights, _ *lander.Options) []lander.Obstacle {
				w.Alpha = 0
				return nil
			}),
			Entry("zero radius obstacle", func(_ *lander.InitialConditions, _ *lander.Weights, _ *lander.Options) []lander.Obstacle {
				return []lander.Obstacle{{RX: 0, RY: 1, Center: lander.LinearPath{}, Weight: 1, Sharpness: 2}}
			}),
			Entry("obstacle without a center", func(_ *lander.InitialConditions, _ *lander.Weights, _ *lander.Options) []lander.Obstacle {
				return []lander.Obstacle{{RX: 1, RY: 1, Weight: 1, Sharpness: 2}}
			}),
		)
	})
})
