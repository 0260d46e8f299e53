package codegen

import (
	"bytes"
	"context"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/isaacev/bfjit/backend"
	"github.com/isaacev/bfjit/backend/vm"
	"github.com/isaacev/bfjit/feedback"
	"github.com/isaacev/bfjit/frontend"
	"github.com/isaacev/bfjit/source"
)

const helloWorld = "++++++++[>++++[>++>+++>+++>+<<<<-]>+>+>->>+[<]<-]>>.>---.+++++++..+++.>>.<-.<.+++.------.--------.>>+.>++."

// execute compiles `src` in interactive mode on the vm backend and runs it
// against a tape the test can inspect afterwards
func execute(src, input string, tapeLen int) ([]byte, string, error) {
	var out bytes.Buffer
	be := vm.New(vm.WithIO(strings.NewReader(input), &out), vm.WithStepLimit(1_000_000))

	mod, err := be.NewModule("test")
	if err != nil {
		return nil, "", err
	}
	defer mod.Dispose()

	file := source.NewFile("test.b", src)
	u, err := NewUnit(mod, file, Interactive{TapeLen: tapeLen})
	if err != nil {
		return nil, "", err
	}

	if err := u.Generate(context.Background(), frontend.Compact(file)); err != nil {
		return nil, "", err
	}
	if err := u.Finish(); err != nil {
		return nil, "", err
	}

	exec, err := mod.Executor(backend.OptNone)
	if err != nil {
		return nil, "", err
	}
	defer exec.Close()

	tape := make([]byte, tapeLen)
	err = exec.Run(u.Function(), tape)
	return tape, out.String(), err
}

// generate lowers `src` into a fresh vm module without finishing it and
// returns the module's IR alongside the generation error
func generate(src string) (string, *Unit, error) {
	mod, err := vm.New().NewModule("test")
	Expect(err).NotTo(HaveOccurred())

	file := source.NewFile("test.b", src)
	u, err := NewUnit(mod, file, Interactive{TapeLen: 8})
	Expect(err).NotTo(HaveOccurred())

	genErr := u.Generate(context.Background(), frontend.Compact(file))

	var ir strings.Builder
	Expect(mod.WriteIR(&ir)).To(Succeed())
	return ir.String(), u, genErr
}

var _ = Describe("Interactive execution", func() {
	It("should leave 4 in the first cell for ++++ without any I/O", func() {
		tape, out, err := execute("++++", "", 1)

		Expect(err).NotTo(HaveOccurred())
		Expect(tape[0]).To(Equal(byte(4)))
		Expect(out).To(BeEmpty())
	})

	It("should run the body of +[-] exactly once", func() {
		tape, _, err := execute("+[-]", "", 4)
		Expect(err).NotTo(HaveOccurred())
		Expect(tape[0]).To(Equal(byte(0)))

		tape, _, err = execute("+[->+<]", "", 4)
		Expect(err).NotTo(HaveOccurred())
		Expect(tape[:2]).To(Equal([]byte{0, 1}))
	})

	It("should echo one byte of input with ,.", func() {
		_, out, err := execute(",.", "A", 1)

		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("A"))
	})

	It("should skip [] entered with a zero cell", func() {
		tape, out, err := execute("[]", "", 2)

		Expect(err).NotTo(HaveOccurred())
		Expect(tape).To(Equal([]byte{0, 0}))
		Expect(out).To(BeEmpty())
	})

	DescribeTable("cell arithmetic wraps modulo 256",
		func(src string, expected byte) {
			tape, _, err := execute(src, "", 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(tape[0]).To(Equal(expected))
		},
		Entry("decrement below zero", "-", byte(255)),
		Entry("increment past 255", strings.Repeat("+", 256), byte(0)),
		Entry("run longer than a byte", strings.Repeat("+", 300), byte(44)),
		Entry("back and forth", "-+", byte(0)),
		Entry("long decrement", strings.Repeat("-", 257), byte(255)),
	)

	It("should move the pointer in both directions", func() {
		tape, _, err := execute(">>+<-<+++", "", 4)

		Expect(err).NotTo(HaveOccurred())
		Expect(tape).To(Equal([]byte{3, 255, 1, 0}))
	})

	It("should run nested loops", func() {
		tape, _, err := execute("++[>+++[>+<-]<-]", "", 3)

		Expect(err).NotTo(HaveOccurred())
		Expect(tape).To(Equal([]byte{0, 0, 6}))
	})

	It("should store 0xFF when input is exhausted", func() {
		tape, _, err := execute(",", "", 1)

		Expect(err).NotTo(HaveOccurred())
		Expect(tape[0]).To(Equal(byte(0xFF)))
	})

	It("should print hello world", func() {
		_, out, err := execute(helloWorld, "", 16)

		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("Hello World!\n"))
	})

	It("should fault instead of corrupting memory when leaving the tape", func() {
		_, _, err := execute("<+", "", 4)

		Expect(errors.Is(err, vm.ErrSegmentFault)).To(BeTrue())
	})
})

var _ = Describe("Bracket matching", func() {
	It("should fail on a lone ] before generating anything", func() {
		ir, u, err := generate("]")

		Expect(errors.Is(err, ErrUnmatchedClose)).To(BeTrue())
		Expect(u.Depth()).To(Equal(0))
		Expect(ir).NotTo(ContainSubstring("loop.start"))

		var ferr feedback.Error
		Expect(errors.As(err, &ferr)).To(BeTrue())
		Expect(ferr.Classification).To(Equal(feedback.StructuralError))
		Expect(ferr.What.Span.Start).To(Equal(source.Pos{Line: 1, Col: 1, Offset: 0}))
	})

	It("should stop at the extra ] without lowering what follows", func() {
		ir, _, err := generate("+]>>")

		Expect(errors.Is(err, ErrUnmatchedClose)).To(BeTrue())
		Expect(ir).To(ContainSubstring("add.i8"))
		Expect(ir).NotTo(ContainSubstring("offset"))
		Expect(err.Error()).To(ContainSubstring("test.b:1:2"))
	})

	It("should report an extra [ only after lowering everything", func() {
		ir, u, err := generate("+[[]>>")

		Expect(errors.Is(err, ErrUnmatchedOpen)).To(BeTrue())
		Expect(u.Depth()).To(Equal(1))
		Expect(ir).To(ContainSubstring("offset"))

		var ferr feedback.Error
		Expect(errors.As(err, &ferr)).To(BeTrue())
		Expect(ferr.What.Span.Start.Col).To(Equal(2))
	})

	It("should point at the innermost unclosed [", func() {
		_, _, err := generate("[[+")

		var ferr feedback.Error
		Expect(errors.As(err, &ferr)).To(BeTrue())
		Expect(ferr.What.Span.Start.Col).To(Equal(2))
	})

	It("should end balanced programs with an empty loop stack", func() {
		_, u, err := generate("+[>[-]<-]")

		Expect(err).NotTo(HaveOccurred())
		Expect(u.Depth()).To(Equal(0))
		Expect(u.Finish()).To(Succeed())
		Expect(u.Finish()).NotTo(Succeed())
	})

	It("should render structural errors with the source line", func() {
		_, _, err := generate("++\n+]")

		var ferr feedback.Error
		Expect(errors.As(err, &ferr)).To(BeTrue())
		Expect(ferr.Make(false)).To(ContainSubstring(" 2 | +]"))
	})
})

var _ = Describe("Cursor", func() {
	It("should follow loops explicitly", func() {
		mod, err := vm.New().NewModule("test")
		Expect(err).NotTo(HaveOccurred())

		file := source.NewFile("test.b", "[")
		u, err := NewUnit(mod, file, Interactive{TapeLen: 1})
		Expect(err).NotTo(HaveOccurred())
		Expect(u.Cursor().Name()).To(Equal("entry"))

		u.loopStart(frontend.Compact(file)[0])
		Expect(u.Cursor().Name()).To(Equal("loop.body"))

		Expect(u.loopEnd(frontend.Instruction{Op: frontend.OpLoopEnd, Count: 1})).To(Succeed())
		Expect(u.Cursor().Name()).To(Equal("loop.exit"))
	})
})

var _ = Describe("Run", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	It("should run programs interactively", func() {
		var out bytes.Buffer
		be := vm.New(vm.WithIO(strings.NewReader(""), &out))

		err := Run(context.Background(), be, source.NewFile("hello.b", helloWorld), Interactive{TapeLen: DefaultTapeLen}, Options{})
		Expect(err).NotTo(HaveOccurred())
		Expect(out.String()).To(Equal("Hello World!\n"))
	})

	It("should dump the complete IR and the instructions", func() {
		var ir, insts bytes.Buffer
		be := vm.New(vm.WithIO(strings.NewReader(""), &bytes.Buffer{}))

		err := Run(context.Background(), be, source.NewFile("dump.b", "+[-]"), Interactive{TapeLen: 1}, Options{IR: &ir, Instructions: &insts})
		Expect(err).NotTo(HaveOccurred())

		Expect(ir.String()).To(ContainSubstring("; module dump"))
		Expect(ir.String()).To(ContainSubstring("define void @main(ptr) {"))
		Expect(ir.String()).To(ContainSubstring("ret void"))
		Expect(insts.String()).To(Equal(frontend.Stringify(frontend.CompactString("+[-]"))))
	})

	It("should not produce anything for malformed programs", func() {
		outfile := dir + "/bad.bfo"
		err := Run(context.Background(), vm.New(), source.NewFile("bad.b", "[+"), NewPersisted(8, outfile, false), Options{})

		Expect(errors.Is(err, ErrUnmatchedOpen)).To(BeTrue())
		Expect(outfile).NotTo(BeAnExistingFile())
	})

	It("should write an object file that runs later", func() {
		outfile := dir + "/hello.bfo"
		err := Run(context.Background(), vm.New(), source.NewFile("hello.b", helloWorld), NewPersisted(64, outfile, false), Options{})
		Expect(err).NotTo(HaveOccurred())

		obj, err := loadObject(outfile)
		Expect(err).NotTo(HaveOccurred())

		prog, err := obj.Lookup(EntryName)
		Expect(err).NotTo(HaveOccurred())
		Expect(prog.Signature.String()).To(Equal("i32 ()"))

		var out bytes.Buffer
		status, err := vm.NewExecutor(obj, vm.WithIO(nil, &out)).Call(EntryName, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(status).To(BeZero())
		Expect(out.String()).To(Equal("Hello World!\n"))
	})

	It("should write assembly when asked", func() {
		outfile := dir + "/prog.s"
		err := Run(context.Background(), vm.New(), source.NewFile("prog.b", "+."), NewPersisted(8, outfile, true), Options{})
		Expect(err).NotTo(HaveOccurred())

		listing, err := readFile(outfile)
		Expect(err).NotTo(HaveOccurred())
		Expect(listing).To(ContainSubstring("<function main i32 ()>"))
		Expect(listing).To(ContainSubstring("ZeroFill"))
	})

	It("should leave no partial artifact when emitting fails", func() {
		outfile := dir + "/prog.o"
		err := Run(context.Background(), foreignTarget{vm.New()}, source.NewFile("prog.b", "+"), NewPersisted(8, outfile, false), Options{})

		Expect(errors.Is(err, backend.ErrUnsupported)).To(BeTrue())
		Expect(outfile).NotTo(BeAnExistingFile())
		Expect(listDir(dir)).To(BeEmpty())
	})

	It("should stop when the context is cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := Run(ctx, vm.New(), source.NewFile("prog.b", "+"), Interactive{TapeLen: 1}, Options{})
		Expect(errors.Is(err, context.Canceled)).To(BeTrue())
	})

	It("should reject empty tapes", func() {
		err := Run(context.Background(), vm.New(), source.NewFile("prog.b", "+"), Interactive{}, Options{})
		Expect(err).To(MatchError(ContainSubstring("invalid tape length")))

		err = Run(context.Background(), vm.New(), source.NewFile("prog.b", "+"), NewPersisted(0, dir+"/x.o", false), Options{})
		Expect(err).To(MatchError(ContainSubstring("invalid tape length")))
	})
})
