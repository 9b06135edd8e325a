package machine_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/cortenjs/corten/lang/compiler"
	"github.com/cortenjs/corten/lang/machine"
	"github.com/cortenjs/corten/lang/parser"
	"github.com/cortenjs/corten/lang/resolver"
	"github.com/stretchr/testify/require"
)

// run compiles and executes src on a fresh thread, returning the thread so
// the test can inspect its globals and stdout.
func run(t *testing.T, src string) *machine.Thread {
	t.Helper()
	prog, err := parser.ParseProgram("test.js", []byte(src))
	require.NoError(t, err)
	res, err := resolver.Resolve("test.js", prog, machine.IsUniverse)
	require.NoError(t, err)
	code := compiler.Compile(prog, res, "test.js")

	th := machine.NewThread("test")
	var stdout bytes.Buffer
	th.Stdout = &stdout
	_, err = th.RunProgram(context.Background(), code)
	require.NoError(t, err)
	return th
}

func global(t *testing.T, th *machine.Thread, name string) machine.Value {
	t.Helper()
	v, ok := th.Globals[name]
	require.True(t, ok, "no such global: %s", name)
	return v
}

func TestArithmetic(t *testing.T) {
	th := run(t, `var x = 1 + 2 * 3;`)
	require.Equal(t, "7", global(t, th, "x").String())
}

func TestStringConcatenation(t *testing.T) {
	th := run(t, `var s = "foo" + "bar";`)
	require.Equal(t, "foobar", global(t, th, "s").String())
}

func TestComparisonAndLogic(t *testing.T) {
	th := run(t, `var a = 1 < 2 && 2 <= 2; var b = 1 > 2 || 3 === 3;`)
	require.Equal(t, "true", global(t, th, "a").String())
	require.Equal(t, "true", global(t, th, "b").String())
}

func TestWhileLoopAndFactorial(t *testing.T) {
	th := run(t, `
		var n = 5;
		var acc = 1;
		while (n > 1) {
			acc = acc * n;
			n = n - 1;
		}
	`)
	require.Equal(t, "120", global(t, th, "acc").String())
}

func TestForOfSumsArray(t *testing.T) {
	th := run(t, `
		var total = 0;
		for (var v of [1, 2, 3, 4]) {
			total = total + v;
		}
	`)
	require.Equal(t, "10", global(t, th, "total").String())
}

func TestClosureCapturesSharedCell(t *testing.T) {
	th := run(t, `
		function makeCounter() {
			var n = 0;
			return function() {
				n = n + 1;
				return n;
			};
		}
		var c = makeCounter();
		c();
		c();
		var last = c();
	`)
	require.Equal(t, "3", global(t, th, "last").String())
}

func TestObjectLiteralAndPropertyAccess(t *testing.T) {
	th := run(t, `
		var o = { x: 1, y: 2 };
		o.z = 3;
		var sum = o.x + o.y + o.z;
	`)
	require.Equal(t, "6", global(t, th, "sum").String())
}

func TestArrayPrototypeMethods(t *testing.T) {
	th := run(t, `
		var a = [3, 1, 2];
		a.push(4);
		var len = a.length;
		var doubled = a.map(function(v) { return v * 2; });
		var total = doubled.reduce(function(acc, v) { return acc + v; }, 0);
	`)
	require.Equal(t, "4", global(t, th, "len").String())
	require.Equal(t, "20", global(t, th, "total").String())
}

func TestTryCatchFinallyRunsInOrder(t *testing.T) {
	th := run(t, `
		var trace = "";
		try {
			trace = trace + "t";
			throw "boom";
		} catch (e) {
			trace = trace + "c" + e;
		} finally {
			trace = trace + "f";
		}
	`)
	require.Equal(t, "tcboomf", global(t, th, "trace").String())
}

func TestThrowAcrossNestedFinally(t *testing.T) {
	th := run(t, `
		var trace = "";
		function inner() {
			try {
				throw "x";
			} finally {
				trace = trace + "inner-finally";
			}
		}
		try {
			inner();
		} catch (e) {
			trace = trace + ",caught " + e;
		}
	`)
	require.Equal(t, "inner-finally,caught x", global(t, th, "trace").String())
}

func TestInstanceofWalksPrototypeChain(t *testing.T) {
	th := run(t, `
		function Animal() {}
		var a = new Animal();
		var isAnimal = a instanceof Animal;
	`)
	require.Equal(t, "true", global(t, th, "isAnimal").String())
}

func TestAsyncAwaitSettlesBeforeProgramReturns(t *testing.T) {
	th := run(t, `
		var result = 0;
		async function compute() {
			var v = await Promise.resolve(5);
			result = v * 2;
			return result;
		}
		compute();
	`)
	require.Equal(t, "10", global(t, th, "result").String())
}

func TestPromiseThenChain(t *testing.T) {
	th := run(t, `
		var result;
		Promise.resolve(1)
			.then(function(v) { return v + 1; })
			.then(function(v) { result = v * 10; });
	`)
	require.Equal(t, "20", global(t, th, "result").String())
}

func TestConsoleLogWritesToStdout(t *testing.T) {
	prog, err := parser.ParseProgram("test.js", []byte(`console.log("hello", 1, true);`))
	require.NoError(t, err)
	res, err := resolver.Resolve("test.js", prog, machine.IsUniverse)
	require.NoError(t, err)
	code := compiler.Compile(prog, res, "test.js")

	th := machine.NewThread("test")
	var stdout bytes.Buffer
	th.Stdout = &stdout
	_, err = th.RunProgram(context.Background(), code)
	require.NoError(t, err)
	require.Equal(t, "hello 1 true\n", stdout.String())
}

func TestUndeclaredIdentifierFailsToResolve(t *testing.T) {
	prog, err := parser.ParseProgram("test.js", []byte(`var x = y;`))
	require.NoError(t, err)
	_, err = resolver.Resolve("test.js", prog, machine.IsUniverse)
	require.Error(t, err)
}
