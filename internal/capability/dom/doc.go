// Package dom implements the dom capability: server-side HTML handling
// for isolates that cannot touch a real browser document.
//
// Each isolate holds at most one parsed document. Parsing consolidates
// inline <style> blocks, updates go through goquery selectors, and
// injected HTML fragments are sanitized before they reach the tree.
// Script execution happens on a goja VM that exposes only a capturing
// console and stub timers, and is interrupted at the profile's script
// deadline. HTML, CSS and script payloads each have independent size
// ceilings.
package dom
